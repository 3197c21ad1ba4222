package cpu

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
)

// Opcode represents one assembled source line.
type Opcode struct {
	LineNo    int      // Source line number.
	Addr      int      // Memory address of the first emitted byte.
	Words     []string // Source words, after equate and expression expansion.
	Bytes     []byte   // Emitted machine bytes.
	LinkLabel string   // Unresolved label reference, if any.
	LinkIndex int      // Offset within Bytes to patch with the label address.
}

// Program is a loaded or assembled listing.
type Program struct {
	Opcodes []Opcode
}

// Debug locates the source line covering a memory address.
type Debug struct {
	*Opcode
	Index int
}

func (prog *Program) Debug(pc byte) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if int(pc) >= op.Addr && int(pc) < op.Addr+len(op.Bytes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(pc) - op.Addr,
			}
			break
		}
	}

	return
}

// Size returns the address just past the last emitted byte.
func (prog *Program) Size() int {
	if len(prog.Opcodes) == 0 {
		return 0
	}

	last := prog.Opcodes[len(prog.Opcodes)-1]

	return last.Addr + len(last.Bytes)
}

// Bytes iterates the program as (address, value) pairs.
func (prog *Program) Bytes() iter.Seq2[byte, byte] {
	return func(yield func(addr byte, value byte) bool) {
		for _, op := range prog.Opcodes {
			for n, value := range op.Bytes {
				if !yield(byte(op.Addr+n), value) {
					return
				}
			}
		}
	}
}

// Image renders the program as a full memory image.
func (prog *Program) Image() (image [RAM_SIZE]byte) {
	for addr, value := range prog.Bytes() {
		image[addr] = value
	}

	return
}

// WriteImage writes the program in the binary-text image format, one
// base-2 byte per line, annotated with the source words.
func (prog *Program) WriteImage(w io.Writer) (err error) {
	for _, op := range prog.Opcodes {
		for n, value := range op.Bytes {
			if n == 0 && len(op.Words) != 0 {
				_, err = fmt.Fprintf(w, "%08b # %v\n", value, strings.Join(op.Words, " "))
			} else {
				_, err = fmt.Fprintf(w, "%08b\n", value)
			}
			if err != nil {
				return
			}
		}
	}

	return
}

// LoadImage parses the binary-text program image format: each non-blank
// line holds one base-2 byte, '#' starts a comment, and bytes load
// sequentially from address 0.
func LoadImage(input io.Reader) (prog *Program, err error) {
	prog = &Program{}

	scanner := bufio.NewScanner(input)

	var lineno int
	var addr int
	for scanner.Scan() {
		line := scanner.Text()
		lineno += 1

		value, _, _ := strings.Cut(line, "#")
		value = strings.TrimSpace(value)
		if len(value) == 0 {
			continue
		}

		num, perr := strconv.ParseUint(value, 2, 8)
		if perr != nil {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: ErrParseNumber(value)}
			return
		}

		if addr >= RAM_SIZE {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: ErrImageTooLarge}
			return
		}

		prog.Opcodes = append(prog.Opcodes, Opcode{
			LineNo: lineno,
			Addr:   addr,
			Words:  []string{value},
			Bytes:  []byte{byte(num)},
		})
		addr += 1
	}

	err = scanner.Err()

	return
}
