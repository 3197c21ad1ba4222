package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func doParse(t *testing.T, source ...string) *Program {
	assert := assert.New(t)

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(strings.Join(source, "\n")))
	assert.NoError(err)

	return prog
}

func TestAssemble(t *testing.T) {
	assert := assert.New(t)

	prog := doParse(t,
		"# multiply two values",
		".equ VALA 2",
		"",
		"start:",
		"	ldi r0, VALA",
		"	ldi r1, $(VALA + 1)",
		"	mul r0, r1",
		"	prn r0",
		"	hlt",
	)

	image := prog.Image()
	assert.Equal([]byte{
		byte(OP_LDI), 0, 2,
		byte(OP_LDI), 1, 3,
		byte(OP_MUL), 0, 1,
		byte(OP_PRN), 0,
		byte(OP_HLT),
	}, image[:prog.Size()])

	// Source lines survive into the listing.
	assert.Equal(5, prog.Opcodes[0].LineNo)
	assert.Equal(9, prog.Opcodes[4].LineNo)
}

func TestAssembleLabels(t *testing.T) {
	assert := assert.New(t)

	prog := doParse(t,
		"	ldi r0, done",
		"	jmp r0",
		"	prn r0",
		"done:",
		"	hlt",
	)

	image := prog.Image()
	assert.Equal([]byte{
		byte(OP_LDI), 0, 7,
		byte(OP_JMP), 0,
		byte(OP_PRN), 0,
		byte(OP_HLT),
	}, image[:prog.Size()])
}

func TestAssembleNumbers(t *testing.T) {
	assert := assert.New(t)

	prog := doParse(t,
		"ldi r0, 0x10",
		"ldi r1, 0b101",
		"ldi r2, 'A'",
		"ldi r3, -1",
		"ldi sp, 10",
	)

	image := prog.Image()
	assert.Equal([]byte{
		byte(OP_LDI), 0, 0x10,
		byte(OP_LDI), 1, 0b101,
		byte(OP_LDI), 2, 'A',
		byte(OP_LDI), 3, 0xFF,
		byte(OP_LDI), SP, 10,
	}, image[:prog.Size()])
}

func TestAssembleDb(t *testing.T) {
	assert := assert.New(t)

	prog := doParse(t,
		"hlt",
		".db 1, 0b10, 0x03",
	)

	image := prog.Image()
	assert.Equal([]byte{byte(OP_HLT), 1, 2, 3}, image[:prog.Size()])
}

func TestAssemblePredefine(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("STACK_TOP", "0xf4")

	prog, err := asm.Parse(strings.NewReader("ldi r0, $(STACK_TOP - 1)"))
	assert.NoError(err)

	image := prog.Image()
	assert.Equal([]byte{byte(OP_LDI), 0, 0xF3}, image[:prog.Size()])
}

func TestAssembleExpressionLineNo(t *testing.T) {
	assert := assert.New(t)

	prog := doParse(t,
		"ldi r0, $(LINENO)",
	)

	image := prog.Image()
	assert.Equal(byte(1), image[2])
}

func TestAssembleErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		source string
		want   error
	}){
		{"bad_mnemonic", "bogus r0", ErrOpcodeInvalid},
		{"bad_register", "ldi r9, 1", ErrRegisterInvalid},
		{"missing_operand", "prn", ErrOperandCount},
		{"extra_operand", "hlt r0", ErrOperandCount},
		{"equ_syntax", ".equ A", ErrEquateSyntax},
		{"equ_duplicate", ".equ A 1\n.equ A 2", ErrEquateDuplicate},
		{"label_duplicate", "a:\nhlt\na:\nhlt", ErrLabelDuplicate},
		{"bad_expression", "ldi r0, $(nonesuch)", nil},
	}

	for _, entry := range table {
		asm := &Assembler{}
		_, err := asm.Parse(strings.NewReader(entry.source))
		assert.Error(err, entry.name)
		if entry.want != nil {
			assert.ErrorIs(err, entry.want, entry.name)
		}

		var serr ErrSyntax
		assert.ErrorAs(err, &serr, entry.name)
	}
}

func TestAssembleLabelMissing(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader("ldi r0, nowhere\nhlt"))
	assert.Error(err)

	var lerr ErrLabelMissing
	if assert.ErrorAs(err, &lerr) {
		assert.Equal("nowhere", string(lerr))
	}
}

func TestAssembleTooLarge(t *testing.T) {
	assert := assert.New(t)

	source := strings.Repeat("ldi r0, 1\n", RAM_SIZE/3+1)
	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader(source))
	assert.ErrorIs(err, ErrImageTooLarge)
}

// Assembler output feeds straight back into the machine.
func TestAssembleAndRun(t *testing.T) {
	assert := assert.New(t)

	prog := doParse(t,
		"	ldi r0, 2",
		"	ldi r1, 3",
		"	mul r0, r1",
		"	prn r0",
		"	hlt",
	)

	cpu := NewCpu()
	output := &strings.Builder{}
	cpu.Output = output
	image := prog.Image()
	cpu.Load(image[:])

	assert.NoError(cpu.Run())
	assert.Equal("6\n", output.String())
}
