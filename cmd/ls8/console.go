package main

import (
	"fmt"

	"github.com/jroimartin/gocui"

	"github.com/ezrec/ls8/cpu"
	"github.com/ezrec/ls8/emulator"
)

// console is the interactive single-step debugger. Program output is
// redirected into the "output" view; the machine only advances on
// keypresses ('s' step, 'c' run to completion, 'q' quit).
type console struct {
	emu  *emulator.Emulator
	done bool
	err  error
}

func runConsole(emu *emulator.Emulator) (err error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return
	}
	defer g.Close()

	con := &console{emu: emu}
	g.SetManagerFunc(con.layout)

	keys := []struct {
		key any
		fn  func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, con.quit},
		{'q', con.quit},
		{'s', con.step},
		{'c', con.run},
	}
	for _, k := range keys {
		if err = g.SetKeybinding("", k.key, gocui.ModNone, k.fn); err != nil {
			return
		}
	}

	err = g.MainLoop()
	if err == gocui.ErrQuit {
		err = nil
	}
	if err == nil {
		err = con.err
	}
	return
}

func (con *console) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("registers", 0, 0, 17, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "registers"
	}
	if v, err := g.SetView("memory", 18, 0, maxX-1, maxY/2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "memory"
	}
	if v, err := g.SetView("output", 18, maxY/2+1, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "output"
		v.Autoscroll = true
		con.emu.Cpu.Output = v
	}

	con.redraw(g)
	return nil
}

func (con *console) redraw(g *gocui.Gui) {
	if v, err := g.View("registers"); err == nil {
		v.Clear()
		fmt.Fprintf(v, " PC: %02X\n FL: %v\n\n", con.emu.Cpu.PC, con.emu.Cpu.FL)
		for n, val := range con.emu.Cpu.Reg {
			name := fmt.Sprintf("r%d", n)
			if n == cpu.SP {
				name = "sp"
			}
			fmt.Fprintf(v, " %s: %02X\n", name, val)
		}
		switch {
		case con.err != nil:
			fmt.Fprintf(v, "\n %v\n", con.err)
		case con.done:
			fmt.Fprintf(v, "\n halted\n")
		}
	}

	if v, err := g.View("memory"); err == nil {
		v.Clear()
		pc := con.emu.Cpu.PC
		for n := range 8 {
			addr := pc + byte(n)
			code := cpu.Code(con.emu.Cpu.Ram[addr])
			marker := "  "
			if n == 0 {
				marker = "> "
			}
			fmt.Fprintf(v, "%s%02X: %08b %v\n", marker, addr, byte(code), code)
		}
	}
}

func (con *console) step(g *gocui.Gui, v *gocui.View) error {
	if !con.done && con.err == nil {
		con.done, con.err = con.emu.Tick()
	}
	con.redraw(g)
	return nil
}

func (con *console) run(g *gocui.Gui, v *gocui.View) error {
	for !con.done && con.err == nil {
		con.done, con.err = con.emu.Tick()
	}
	con.redraw(g)
	return nil
}

func (con *console) quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
