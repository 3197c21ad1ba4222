// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a two-pass assembler for the LS-8 instruction set.
// The first pass expands equates and expressions and emits bytes; the
// second pass links label references.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string // Predefines
	Label     map[string]int    // Map of jump labels to addresses.
	Equate    map[string]string // Map of equates.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// registerOf parses a register operand, r0 through r7 or sp.
func (asm *Assembler) registerOf(word string) (reg byte, err error) {
	if word == "sp" {
		reg = SP
		return
	}

	if len(word) == 2 && word[0] == 'r' && word[1] >= '0' && word[1] <= '7' {
		reg = word[1] - '0'
		return
	}

	err = ErrRegisterInvalid
	return
}

// valueOf returns the byte value of a simple word.
func (asm *Assembler) valueOf(word string) (value byte, err error) {
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}
	if word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseCharacter(word[1 : len(word)-1])
		return
	}

	v64, perr := strconv.ParseInt(word, 0, 16)
	if perr != nil {
		err = ErrParseNumber(word)
		return
	}
	if v64 < -128 || v64 > 255 {
		err = ErrParseNumber(word)
		return
	}

	value = byte(v64)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value byte, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		v64, _err := strconv.ParseInt(str, 0, 64)
		if _err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = byte(st_int64)
	return
}

// parseLine expands a single source line: strips comments, evaluates
// character quotes and $() expressions, substitutes equates, and records
// labels and .equ definitions. The returned words are ready to encode.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	line, _, _ = strings.Cut(line, "#")

	// Do 'x' evaluations
	re := regexp.MustCompile(`'\\?[^']'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			switch str[1:] {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%v", value)
	})
	if err != nil {
		return
	}

	// Operand commas are equivalent to whitespace.
	line = strings.ReplaceAll(line, ",", " ")

	words = strings.Fields(line)
	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	return
}

// parseWords encodes a single instruction or .db directive.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	op := Opcode{
		LineNo:    lineno,
		Addr:      asm.currentAddr(),
		Words:     words,
		LinkIndex: -1,
	}

	// .db VALUE...
	if words[0] == ".db" {
		for _, word := range words[1:] {
			var value byte
			value, err = asm.valueOf(word)
			if err != nil {
				return
			}
			op.Bytes = append(op.Bytes, value)
		}
		asm.Opcode = append(asm.Opcode, op)
		return
	}

	code, ok := opMnemonics[strings.ToLower(words[0])]
	if !ok {
		err = ErrOpcodeInvalid
		return
	}

	shape := opShapes[code]
	args := words[1:]
	if len(args) != len(shape) {
		err = ErrOperandCount
		return
	}

	op.Bytes = []byte{byte(code)}
	for n, kind := range shape {
		var value byte
		switch kind {
		case 'r':
			value, err = asm.registerOf(args[n])
		case 'v':
			value, err = asm.valueOf(args[n])
			if err != nil {
				// Not a number; assume a label reference, to be
				// patched once all labels are known.
				op.LinkLabel = args[n]
				op.LinkIndex = 1 + n
				value = 0
				err = nil
			}
		}
		if err != nil {
			return
		}
		op.Bytes = append(op.Bytes, value)
	}

	asm.Opcode = append(asm.Opcode, op)
	return
}

// currentAddr gets the current assembly address.
func (asm *Assembler) currentAddr() int {
	if len(asm.Opcode) == 0 {
		return 0
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Addr + len(last.Bytes)
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
			prog = nil
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		line = strings.TrimSpace(text)

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}
		if len(words) == 0 {
			continue
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}
	err = scanner.Err()
	if err != nil {
		return
	}

	// Link pass: all labels are known now.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]
		if len(op.LinkLabel) == 0 {
			continue
		}
		addr, ok := asm.Label[op.LinkLabel]
		if !ok {
			lineno = op.LineNo
			line = strings.Join(op.Words, " ")
			err = ErrLabelMissing(op.LinkLabel)
			return
		}
		op.Bytes[op.LinkIndex] = byte(addr)
	}

	prog = &Program{Opcodes: slices.Clone(asm.Opcode)}

	if prog.Size() > RAM_SIZE {
		last := asm.Opcode[len(asm.Opcode)-1]
		lineno = last.LineNo
		line = strings.Join(last.Words, " ")
		err = ErrImageTooLarge
		return
	}

	return
}
