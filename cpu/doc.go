// Package cpu implements the LS-8 microcomputer and its assembler.
//
// The LS-8 is an 8-bit machine with 256 bytes of RAM, eight byte-wide
// general purpose registers (r7 is reserved as the stack pointer, starting
// at 0xF4 and growing down), a program counter, and a comparison flags
// register. Instructions are one opcode byte followed by zero, one, or two
// operand bytes; the opcode byte itself encodes the operand count, whether
// the instruction is routed to the ALU, and whether it updates the PC
// directly.
//
// Addresses and stack pointers are byte-typed, so all address arithmetic
// wraps modulo 256; stack overflow and underflow are not detected. Register
// operands are taken modulo 8.
//
// The assembler provides mnemonics, labels, equates, and compile-time
// $( ) expression evaluation for the LS-8 instruction set.
package cpu
