// Package isa is the target machine's instruction vocabulary and a
// small line-builder the code generator uses to assemble it into text.
// It is a direct descendant of the teacher's instructions package: that
// package tagged an RPN operator with a byte InstructionType and an
// optional payload; this one does the same job for the target's
// mnemonics, trading the RPN vocabulary for the eight-register
// machine's real instruction set (spec.md §4.4) and a payload that is
// assembled straight into one line of text rather than kept as a typed
// value, since nothing downstream of code generation re-interprets the
// emitted instructions.
package isa

import (
	"fmt"
	"strings"
)

// Reg names the eight general-purpose registers. r5 is the stack
// pointer and r6 is the return-address register by the convention this
// backend chooses (spec.md §4.4); both are ordinary Reg values here,
// the convention lives in the code generator that uses them.
type Reg int

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
)

func (r Reg) String() string {
	return fmt.Sprintf("r%d", int(r))
}

// Mnemonic is one opcode from the target's fixed instruction set.
type Mnemonic string

const (
	LD   Mnemonic = "ld"
	ST   Mnemonic = "st"
	MOV  Mnemonic = "mov"
	ADD  Mnemonic = "add"
	INC  Mnemonic = "inc"
	DEC  Mnemonic = "dec"
	NOT  Mnemonic = "not"
	AND  Mnemonic = "and"
	SHL  Mnemonic = "shl"
	SHR  Mnemonic = "shr"
	INCA Mnemonic = "inca"
	DECA Mnemonic = "deca"
	BEQ  Mnemonic = "beq"
	BGT  Mnemonic = "bgt"
	BE   Mnemonic = "be"
	BR   Mnemonic = "br"
	J    Mnemonic = "j"
	GPC  Mnemonic = "gpc"
	HALT Mnemonic = "halt"
)

// Program is an ordered sequence of assembly lines being assembled by
// the code generator. Labels and instructions are both just lines; the
// distinction matters to the generator, not to the builder.
type Program struct {
	lines []string
}

// NewProgram returns an empty Program.
func NewProgram() *Program {
	return &Program{}
}

// Label emits a bare label line (`name:`).
func (p *Program) Label(name string) {
	p.lines = append(p.lines, name+":")
}

// Emit assembles one instruction line with the given mnemonic and
// comma-separated operands, indented the way the teacher's generator
// output its own instruction lines.
func (p *Program) Emit(m Mnemonic, operands ...string) {
	if len(operands) == 0 {
		p.lines = append(p.lines, "\t"+string(m))
		return
	}
	p.lines = append(p.lines, "\t"+string(m)+" "+strings.Join(operands, ", "))
}

// Raw appends a pre-formatted line verbatim, for directives (`.pos`,
// `.long`) that don't fit the mnemonic+operands shape.
func (p *Program) Raw(line string) {
	p.lines = append(p.lines, line)
}

// Comment appends a `;`-prefixed comment line, used only in -debug mode.
func (p *Program) Comment(text string) {
	p.lines = append(p.lines, "\t; "+text)
}

// Immediate formats an immediate operand, e.g. Immediate(5) -> "$5".
func Immediate(v int32) string {
	return fmt.Sprintf("$%d", v)
}

// ImmediateLabel formats an immediate reference to a label, e.g.
// ImmediateLabel("main") -> "$main".
func ImmediateLabel(name string) string {
	return "$" + name
}

// Indexed formats a stack/base-relative operand, e.g. Indexed(8, R5) ->
// "8(r5)".
func Indexed(offset int, base Reg) string {
	return fmt.Sprintf("%d(%s)", offset, base)
}

// Indirect formats a register-indirect operand, e.g. Indirect(R0) ->
// "(r0)".
func Indirect(r Reg) string {
	return fmt.Sprintf("(%s)", r)
}

// String renders the assembled program as a single text blob, one
// instruction/label/directive per line.
func (p *Program) String() string {
	return strings.Join(p.lines, "\n") + "\n"
}

// Len reports how many lines have been emitted so far, useful for
// tests that want to assert a prologue didn't grow unexpectedly.
func (p *Program) Len() int {
	return len(p.lines)
}
