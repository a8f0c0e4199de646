// Package asm defines the target machine: three interchangeable registers, a backing memory addressed by
// variable name, and the load/store/operation instructions emitted by the code generator.
package asm

import (
	"fmt"
	"strings"

	"github.com/tac3/tac3/internal/tac"
)

// Register is a physical register. The zero value NilRegister means "no register".
type Register byte

const (
	NilRegister Register = iota
	R1
	R2
	R3
)

// NumRegisters is the number of allocatable registers.
const NumRegisters = 3

// Registers lists the allocatable registers in allocation order. The first element is the most preferred one.
var Registers = [NumRegisters]Register{R1, R2, R3}

// Index returns the position of r in Registers.
func (r Register) Index() int {
	return int(r) - 1
}

// Valid returns true if r is one of Registers.
func (r Register) Valid() bool {
	return R1 <= r && r <= R3
}

// String implements fmt.Stringer.
func (r Register) String() string {
	if !r.Valid() {
		return "nil"
	}
	return fmt.Sprintf("R%d", byte(r))
}

// InstructionKind is the tag of an emitted Instruction.
type InstructionKind byte

const (
	KindLoad InstructionKind = iota + 1
	KindStore
	KindOp
)

// String implements fmt.Stringer.
func (k InstructionKind) String() string {
	switch k {
	case KindLoad:
		return "LD"
	case KindStore:
		return "ST"
	case KindOp:
		return "OP"
	default:
		return "invalid"
	}
}

// Instruction is an emitted machine instruction.
//
//   - KindLoad:  Dst <- memory[Var]
//   - KindStore: memory[Var] <- Dst
//   - KindOp:    Dst <- Src1 Op Src2
type Instruction struct {
	Kind       InstructionKind
	Var        tac.Variable
	Op         string
	Dst        Register
	Src1, Src2 Register
}

// Load returns `LD r, v`.
func Load(r Register, v tac.Variable) Instruction {
	return Instruction{Kind: KindLoad, Dst: r, Var: v}
}

// Store returns `ST v, r`.
func Store(v tac.Variable, r Register) Instruction {
	return Instruction{Kind: KindStore, Dst: r, Var: v}
}

// Op returns `OP dst, src1, src2`.
func Op(op string, dst, src1, src2 Register) Instruction {
	return Instruction{Kind: KindOp, Op: op, Dst: dst, Src1: src1, Src2: src2}
}

// Mnemonic returns the canonical upper-case spelling of the instruction's operation.
func (i Instruction) Mnemonic() string {
	if i.Kind == KindOp {
		return strings.ToUpper(i.Op)
	}
	return i.Kind.String()
}

// String implements fmt.Stringer. The mnemonic is padded to three columns.
func (i Instruction) String() string {
	switch i.Kind {
	case KindLoad:
		return fmt.Sprintf("%-3s %s, %s", i.Mnemonic(), i.Dst, i.Var)
	case KindStore:
		return fmt.Sprintf("%-3s %s, %s", i.Mnemonic(), i.Var, i.Dst)
	case KindOp:
		return fmt.Sprintf("%-3s %s, %s, %s", i.Mnemonic(), i.Dst, i.Src1, i.Src2)
	default:
		return "invalid"
	}
}

// Format renders the program one instruction per line.
func Format(prog []Instruction) string {
	var b strings.Builder
	for _, instr := range prog {
		b.WriteString(instr.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Lines renders the program as one string per instruction.
func Lines(prog []Instruction) []string {
	ret := make([]string, len(prog))
	for i, instr := range prog {
		ret[i] = instr.String()
	}
	return ret
}

// Emitter receives emitted instructions in program order.
type Emitter interface {
	Emit(Instruction)
}

// Buffer is an Emitter which appends to a slice.
type Buffer struct {
	Code []Instruction
}

// Emit implements Emitter.Emit.
func (b *Buffer) Emit(i Instruction) {
	b.Code = append(b.Code, i)
}
