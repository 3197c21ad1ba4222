package emulator

import (
	"bytes"
	"maps"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/ls8/cpu"
)

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.NotNil(emu.Program)
}

func TestEmulatorDefines(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	defines := maps.Collect(emu.Defines())

	assert.Contains(defines, "IMAGE_SIZE")
	assert.Contains(defines, "SP")
	assert.Contains(defines, "STACK_TOP")
}

// doRunSingle assembles a program, steps it instruction by instruction
// verifying the source line mapping, and returns the program output.
func doRunSingle(emu *Emulator, program []string, t *testing.T) (output string) {
	assert := assert.New(t)

	asm := &cpu.Assembler{}
	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	assert.NoError(err)
	emu.Program = prog

	buffer := &bytes.Buffer{}
	emu.Output = buffer

	err = emu.Reset()
	assert.NoError(err)

	var done bool
	for !done {
		lineno := emu.LineNo()
		if assert.NotZero(lineno) {
			here := program[lineno-1]
			dbg := prog.Debug(emu.Cpu.PC)
			assert.NotNil(dbg.Opcode, here)

			done, err = emu.Tick()
			assert.NoError(err, here)
			if err != nil {
				t.Log(emu.Cpu.String())
				t.Fatalf("%v", err)
			}
		} else {
			done, err = emu.Tick()
			assert.NoError(err)
		}
	}

	output = buffer.String()
	return
}

func TestEmulatorRun(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	output := doRunSingle(emu, []string{
		"	ldi r0, 2",
		"	ldi r1, 3",
		"	mul r0, r1",
		"	prn r0",
		"	hlt",
	}, t)

	assert.Equal("6\n", output)
}

func TestEmulatorCallRet(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	output := doRunSingle(emu, []string{
		"	ldi r0, double",
		"	ldi r1, 21",
		"	call r0",
		"	prn r1",
		"	hlt",
		"double:",
		"	add r1, r1",
		"	ret",
	}, t)

	assert.Equal("42\n", output)
	assert.Equal(cpu.STACK_TOP, emu.Cpu.Reg[cpu.SP])
}

func TestEmulatorRuntimeError(t *testing.T) {
	assert := assert.New(t)

	asm := &cpu.Assembler{}
	prog, err := asm.Parse(strings.NewReader(".db 0b01001111"))
	assert.NoError(err)

	emu := NewEmulator()
	emu.Program = prog
	emu.Output = &bytes.Buffer{}
	assert.NoError(emu.Reset())

	err = emu.Run()
	assert.Error(err)
	assert.ErrorIs(err, cpu.ErrUnknownOpcode)

	var rerr *ErrRuntime
	if assert.ErrorAs(err, &rerr) {
		assert.Equal(1, rerr.LineNo)
	}
}

// Reset must restore a rerunnable machine.
func TestEmulatorRerun(t *testing.T) {
	assert := assert.New(t)

	asm := &cpu.Assembler{}
	prog, err := asm.Parse(strings.NewReader(strings.Join([]string{
		"ldi r0, 8",
		"prn r0",
		"hlt",
	}, "\n")))
	assert.NoError(err)

	emu := NewEmulator()
	emu.Program = prog
	buffer := &bytes.Buffer{}
	emu.Output = buffer

	for range 2 {
		assert.NoError(emu.Reset())
		assert.NoError(emu.Run())
	}

	assert.Equal("8\n8\n", buffer.String())
}
