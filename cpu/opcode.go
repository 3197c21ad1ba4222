package cpu

import (
	"fmt"
)

// Code is a single LS-8 instruction byte.
//
// Encoding, MSB first:
//
//	AABCDDDD
//	AA   = operand byte count (0, 1, or 2)
//	B    = 1 if the instruction is routed to the ALU
//	C    = 1 if the instruction sets the PC itself
//	DDDD = instruction identifier
type Code byte

// The LS-8 instruction set.
const (
	OP_HLT  = Code(0b00000001)
	OP_RET  = Code(0b00010001)
	OP_PUSH = Code(0b01000101)
	OP_POP  = Code(0b01000110)
	OP_PRN  = Code(0b01000111)
	OP_CALL = Code(0b01010000)
	OP_JMP  = Code(0b01010100)
	OP_JEQ  = Code(0b01010101)
	OP_JNE  = Code(0b01010110)
	OP_LDI  = Code(0b10000010)
	OP_ADD  = Code(0b10100000)
	OP_SUB  = Code(0b10100001)
	OP_MUL  = Code(0b10100010)
	OP_CMP  = Code(0b10100111)
)

// opNames maps opcode bytes to mnemonics. opShapes describes the operands
// each opcode takes: 'r' for a register index, 'v' for an immediate value.
// The assembler keys mnemonics back to opcodes through these tables.
var opNames = map[Code]string{
	OP_HLT:  "hlt",
	OP_RET:  "ret",
	OP_PUSH: "push",
	OP_POP:  "pop",
	OP_PRN:  "prn",
	OP_CALL: "call",
	OP_JMP:  "jmp",
	OP_JEQ:  "jeq",
	OP_JNE:  "jne",
	OP_LDI:  "ldi",
	OP_ADD:  "add",
	OP_SUB:  "sub",
	OP_MUL:  "mul",
	OP_CMP:  "cmp",
}

var opShapes = map[Code]string{
	OP_HLT:  "",
	OP_RET:  "",
	OP_PUSH: "r",
	OP_POP:  "r",
	OP_PRN:  "r",
	OP_CALL: "r",
	OP_JMP:  "r",
	OP_JEQ:  "r",
	OP_JNE:  "r",
	OP_LDI:  "rv",
	OP_ADD:  "rr",
	OP_SUB:  "rr",
	OP_MUL:  "rr",
	OP_CMP:  "rr",
}

var opMnemonics map[string]Code

func init() {
	opMnemonics = make(map[string]Code, len(opNames))
	for code, name := range opNames {
		opMnemonics[name] = code
	}
}

// Operands returns the operand byte count encoded in bits 7-6.
func (code Code) Operands() int {
	return int(code>>6) & 0x3
}

// IsAlu reports whether bit 5 routes the instruction to the ALU.
func (code Code) IsAlu() bool {
	return (code>>5)&1 != 0
}

// SetsPC reports whether bit 4 makes the instruction responsible for
// updating the PC itself.
func (code Code) SetsPC() bool {
	return (code>>4)&1 != 0
}

// Ident returns the 4-bit instruction identifier from bits 3-0.
func (code Code) Ident() byte {
	return byte(code) & 0xf
}

// Width returns the full instruction width in bytes, 1 + operand count.
func (code Code) Width() byte {
	return byte(1 + code.Operands())
}

// String returns the mnemonic for known opcodes, and the raw bit pattern
// otherwise.
func (code Code) String() string {
	name, ok := opNames[code]
	if !ok {
		return fmt.Sprintf("0b%08b", byte(code))
	}
	return name
}

// AluOp is the 4-bit identifier of an ALU operation.
type AluOp byte

//go:generate go tool stringer -linecomment -type=AluOp
const (
	ALU_OP_ADD = AluOp(0x0) // add
	ALU_OP_SUB = AluOp(0x1) // sub
	ALU_OP_MUL = AluOp(0x2) // mul
	ALU_OP_CMP = AluOp(0x7) // cmp
)

// Flag is the comparison flags register. Exactly one of FL_EQ, FL_GT,
// or FL_LT is set after every CMP; a zero Flag means no comparison has
// run since reset.
type Flag byte

const (
	FL_EQ = Flag(0b001)
	FL_GT = Flag(0b010)
	FL_LT = Flag(0b100)
)

func (fl Flag) String() string {
	switch {
	case fl&FL_EQ != 0:
		return "eq"
	case fl&FL_GT != 0:
		return "gt"
	case fl&FL_LT != 0:
		return "lt"
	}
	return "--"
}

// State is the execution state of the machine.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	RUNNING = State(0) // running
	HALTED  = State(1) // halted
)
