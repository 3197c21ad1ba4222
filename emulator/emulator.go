// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"fmt"
	"io"
	"iter"
	"maps"
	"os"

	"github.com/ezrec/ls8/cpu"
	"github.com/ezrec/ls8/internal"
)

var _emulator_defines = map[string]string{
	"IMAGE_SIZE": fmt.Sprintf("%v", cpu.RAM_SIZE),
}

// Emulator is the LS-8 machine plus its program listing and output
// plumbing.
type Emulator struct {
	Verbose  bool // If set, enables verbose logging.
	*cpu.Cpu      // Reference to the machine simulation.
	Program  *cpu.Program

	Output io.Writer // Program output; defaults to os.Stdout.
}

// NewEmulator creates a new emulator with an empty program.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{},
		Output:  os.Stdout,
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Reset restores the machine to power-on state and reloads the program
// image.
func (emu *Emulator) Reset() (err error) {
	emu.Cpu.Reset()
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Output = emu.Output

	image := emu.Program.Image()
	emu.Cpu.Load(image[:])

	return
}

// LineNo returns the source line number for the instruction at the PC.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.PC)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick performs a single instruction cycle. Runtime errors are annotated
// with the source line of the failing instruction.
func (emu *Emulator) Tick() (done bool, err error) {
	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Err: err}
		}
	}()

	state, err := emu.Cpu.Step()
	done = state != cpu.RUNNING

	return
}

// Run ticks the emulator until the program halts or fails.
func (emu *Emulator) Run() (err error) {
	for done := false; !done; {
		done, err = emu.Tick()
		if err != nil {
			return
		}
	}

	return
}
