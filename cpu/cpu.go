package cpu

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"os"
)

const (
	SP        = 7          // Register reserved as the stack pointer.
	RAM_SIZE  = 256        // Bytes of addressable memory.
	STACK_TOP = byte(0xF4) // Power-on value of the stack pointer.
)

var _cpu_defines = map[string]string{
	"SP":        fmt.Sprintf("%v", SP),
	"RAM_SIZE":  fmt.Sprintf("%v", RAM_SIZE),
	"STACK_TOP": fmt.Sprintf("%#x", STACK_TOP),
	"FL_EQ":     fmt.Sprintf("%#x", byte(FL_EQ)),
	"FL_GT":     fmt.Sprintf("%#x", byte(FL_GT)),
	"FL_LT":     fmt.Sprintf("%#x", byte(FL_LT)),
}

// Cpu is the simulation context for the LS-8 machine.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Ram [RAM_SIZE]byte // Main memory.
	Reg [8]byte        // Register bank; Reg[SP] is the stack pointer.
	PC  byte           // Program counter.
	FL  Flag           // Comparison flags.

	Output io.Writer // Destination for PRN output.

	Mar byte // Memory address register (last address touched).
	Mdr byte // Memory data register (last value read or written).

	// Operand latches, filled on every fetch regardless of the
	// instruction's operand count.
	operandA byte
	operandB byte

	halted   bool
	dispatch map[Code]func()
}

// NewCpu creates a new machine in power-on state, printing to stdout.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{
		Output: os.Stdout,
	}

	cpu.dispatch = map[Code]func(){
		OP_HLT:  cpu.opHalt,
		OP_LDI:  cpu.opLoad,
		OP_PRN:  cpu.opPrint,
		OP_PUSH: cpu.opPush,
		OP_POP:  cpu.opPop,
		OP_CALL: cpu.opCall,
		OP_RET:  cpu.opRet,
		OP_JMP:  cpu.opJmp,
		OP_JEQ:  cpu.opJeq,
		OP_JNE:  cpu.opJne,
	}

	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset restores power-on state: zeroed memory, registers, PC, and flags,
// with the stack pointer at STACK_TOP.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Ram[:])
	clear(cpu.Reg[:])
	cpu.Reg[SP] = STACK_TOP
	cpu.PC = 0
	cpu.FL = 0
	cpu.Mar = 0
	cpu.Mdr = 0
	cpu.operandA = 0
	cpu.operandB = 0
	cpu.halted = false
}

// Load copies a program image into memory starting at address 0.
func (cpu *Cpu) Load(image []byte) {
	copy(cpu.Ram[:], image)
}

// RamRead returns the byte at address, recording it in the MAR/MDR latches.
func (cpu *Cpu) RamRead(address byte) byte {
	cpu.Mar = address
	cpu.Mdr = cpu.Ram[address]
	return cpu.Mdr
}

// RamWrite stores value at address, recording it in the MAR/MDR latches.
func (cpu *Cpu) RamWrite(address byte, value byte) {
	cpu.Mar = address
	cpu.Mdr = value
	cpu.Ram[address] = value
}

// String returns the current machine state as a trace line:
// the PC, the three bytes at PC..PC+2, the flags, and all 8 registers.
func (cpu *Cpu) String() (text string) {
	text = fmt.Sprintf("PC=%02X | %02X %02X %02X | FL=%v |",
		cpu.PC, cpu.Ram[cpu.PC], cpu.Ram[cpu.PC+1], cpu.Ram[cpu.PC+2], cpu.FL)
	for _, val := range cpu.Reg {
		text += fmt.Sprintf(" %02X", val)
	}
	return
}

// Step executes a single fetch-decode-execute cycle. The returned state is
// RUNNING unless the cycle executed a HLT. Unrecognized opcodes and
// unsupported ALU identifiers return an error wrapped with ErrOpcode; the
// machine must not be stepped further after an error.
func (cpu *Cpu) Step() (state State, err error) {
	code := Code(cpu.RamRead(cpu.PC))

	// The operand latches are always filled; instructions with fewer
	// operands ignore the extra bytes.
	cpu.operandA = cpu.RamRead(cpu.PC + 1)
	cpu.operandB = cpu.RamRead(cpu.PC + 2)

	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode(code), err)
		}
	}()

	if cpu.Verbose {
		log.Printf("%02x: %v", cpu.PC, code)
	}

	if code.IsAlu() {
		err = cpu.alu(AluOp(code.Ident()), cpu.operandA, cpu.operandB)
		if err != nil {
			return
		}
	} else {
		effect, ok := cpu.dispatch[code]
		if !ok {
			err = ErrUnknownOpcode
			return
		}
		effect()
	}

	if !code.SetsPC() {
		cpu.PC += code.Width()
	}

	if cpu.halted {
		state = HALTED
	}

	return
}

// Run steps the machine until it halts or a cycle fails.
func (cpu *Cpu) Run() (err error) {
	state := RUNNING
	for state == RUNNING && err == nil {
		state, err = cpu.Step()
	}
	return
}

// alu performs a register-to-register arithmetic or comparison operation.
// Arithmetic wraps at 8 bits. CMP replaces the flags register outright,
// so exactly one of FL_EQ, FL_LT, FL_GT is set afterward.
func (cpu *Cpu) alu(op AluOp, a byte, b byte) (err error) {
	a &= 0x7
	b &= 0x7

	switch op {
	case ALU_OP_ADD:
		cpu.Reg[a] += cpu.Reg[b]
	case ALU_OP_SUB:
		cpu.Reg[a] -= cpu.Reg[b]
	case ALU_OP_MUL:
		cpu.Reg[a] *= cpu.Reg[b]
	case ALU_OP_CMP:
		switch va, vb := cpu.Reg[a], cpu.Reg[b]; {
		case va == vb:
			cpu.FL = FL_EQ
		case va < vb:
			cpu.FL = FL_LT
		default:
			cpu.FL = FL_GT
		}
	default:
		err = ErrAluOp
	}

	return
}

func (cpu *Cpu) opHalt() {
	cpu.halted = true
}

func (cpu *Cpu) opLoad() {
	cpu.Reg[cpu.operandA&0x7] = cpu.operandB
}

func (cpu *Cpu) opPrint() {
	fmt.Fprintln(cpu.Output, cpu.Reg[cpu.operandA&0x7])
}

func (cpu *Cpu) opPush() {
	cpu.Reg[SP]--
	cpu.RamWrite(cpu.Reg[SP], cpu.Reg[cpu.operandA&0x7])
}

func (cpu *Cpu) opPop() {
	cpu.Reg[cpu.operandA&0x7] = cpu.RamRead(cpu.Reg[SP])
	cpu.Reg[SP]++
}

// opCall pushes the address of the instruction following the CALL, then
// jumps to the address held in the operand register.
func (cpu *Cpu) opCall() {
	cpu.Reg[SP]--
	cpu.RamWrite(cpu.Reg[SP], cpu.PC+2)
	cpu.PC = cpu.Reg[cpu.operandA&0x7]
}

func (cpu *Cpu) opRet() {
	cpu.PC = cpu.RamRead(cpu.Reg[SP])
	cpu.Reg[SP]++
}

func (cpu *Cpu) opJmp() {
	cpu.PC = cpu.Reg[cpu.operandA&0x7]
}

// opJeq jumps if the last comparison set FL_EQ. JEQ carries the PC-setting
// bit, so the fall-through case advances the PC by the instruction width
// itself.
func (cpu *Cpu) opJeq() {
	if cpu.FL&FL_EQ != 0 {
		cpu.PC = cpu.Reg[cpu.operandA&0x7]
	} else {
		cpu.PC += 2
	}
}

// opJne jumps if FL_EQ is clear, which includes the initial unset flags
// state.
func (cpu *Cpu) opJne() {
	if cpu.FL&FL_EQ == 0 {
		cpu.PC = cpu.Reg[cpu.operandA&0x7]
	} else {
		cpu.PC += 2
	}
}
