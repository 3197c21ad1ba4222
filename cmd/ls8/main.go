// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/ezrec/ls8/cpu"
	"github.com/ezrec/ls8/emulator"
)

// Config holds the parsed command line.
type Config struct {
	Compile string // Assembly source to compile, instead of an image.
	Output  string // Destination for the assembled image.
	Image   string // Binary-text image to execute.
	Debug   bool   // Open the interactive debugger.
	Verbose bool   // Verbose tracing.
}

func parseArgs() *Config {
	var c Config

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s [options] <image.ls8>\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.StringVar(&c.Compile, "c", "", ".asm file to compile")
	flag.StringVar(&c.Output, "o", "", "write the assembled image and exit")
	flag.BoolVar(&c.Debug, "debug", false, "open the interactive debugger")
	flag.BoolVar(&c.Verbose, "v", false, "Verbose mode")

	flag.Parse()

	if len(c.Compile) == 0 {
		if flag.NArg() != 1 {
			flag.Usage()
			os.Exit(1)
		}
		c.Image = flag.Arg(0)
	} else if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	return &c
}

// loadProgram assembles or loads the program named by the configuration.
func loadProgram(conf *Config, emu *emulator.Emulator) (prog *cpu.Program, err error) {
	if len(conf.Compile) != 0 {
		inf, err := os.Open(conf.Compile)
		if err != nil {
			return nil, errors.Wrapf(err, "open failed")
		}
		defer inf.Close()

		asm := &cpu.Assembler{Verbose: conf.Verbose}
		for name, value := range emu.Defines() {
			asm.Predefine(name, value)
		}

		prog, err = asm.Parse(inf)
		if err != nil {
			return nil, errors.Wrapf(err, "%v", conf.Compile)
		}
		return prog, nil
	}

	inf, err := os.Open(conf.Image)
	if err != nil {
		return nil, errors.Wrapf(err, "open failed")
	}
	defer inf.Close()

	prog, err = cpu.LoadImage(inf)
	if err != nil {
		return nil, errors.Wrapf(err, "%v", conf.Image)
	}
	return prog, nil
}

func main() {
	conf := parseArgs()

	emu := emulator.NewEmulator()
	emu.Verbose = conf.Verbose

	prog, err := loadProgram(conf, emu)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	emu.Program = prog

	if len(conf.Output) != 0 {
		ouf, err := os.Create(conf.Output)
		if err != nil {
			fmt.Fprintln(os.Stderr, errors.Wrapf(err, "create failed"))
			os.Exit(2)
		}
		err = prog.WriteImage(ouf)
		ouf.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, errors.Wrapf(err, "%v", conf.Output))
			os.Exit(2)
		}
		return
	}

	if err := emu.Reset(); err != nil {
		log.Fatal(err)
	}

	if conf.Debug {
		if err := runConsole(emu); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := emu.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, emu.Cpu.String())
		os.Exit(1)
	}
}
