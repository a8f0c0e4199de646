// Package tac defines the straight-line three-address code accepted by the code generator.
package tac

import (
	"errors"
	"fmt"
)

// ErrUnsupportedInstruction is returned when an Instruction is neither *Move nor *BinOp.
var ErrUnsupportedInstruction = errors.New("unsupported instruction kind")

// Variable is an opaque variable name. It carries no type information.
type Variable string

// Kind is the tag of an Instruction.
type Kind byte

const (
	KindInvalid Kind = iota
	KindMove
	KindBinOp
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindMove:
		return "Move"
	case KindBinOp:
		return "BinOp"
	default:
		return "invalid"
	}
}

// Instruction is a single three-address instruction.
type Instruction interface {
	fmt.Stringer
	// Kind returns the tag of this instruction.
	Kind() Kind
	// Def returns the variable written by this instruction.
	Def() Variable
	// Uses returns the variables read by this instruction, in operand order.
	// Note: the returned slice may contain the same variable twice, e.g. for `t = a + a`.
	Uses() []Variable
}

// Move is `Dst = Src`.
type Move struct {
	Dst, Src Variable
}

// Kind implements Instruction.Kind.
func (m *Move) Kind() Kind { return KindMove }

// Def implements Instruction.Def.
func (m *Move) Def() Variable { return m.Dst }

// Uses implements Instruction.Uses.
func (m *Move) Uses() []Variable { return []Variable{m.Src} }

// String implements fmt.Stringer.
func (m *Move) String() string {
	return fmt.Sprintf("%s = %s", m.Dst, m.Src)
}

// BinOp is `Dst = Src1 Op Src2`. Op is never interpreted by the register allocator.
type BinOp struct {
	Dst, Src1 Variable
	Op        string
	Src2      Variable
}

// Kind implements Instruction.Kind.
func (b *BinOp) Kind() Kind { return KindBinOp }

// Def implements Instruction.Def.
func (b *BinOp) Def() Variable { return b.Dst }

// Uses implements Instruction.Uses.
func (b *BinOp) Uses() []Variable { return []Variable{b.Src1, b.Src2} }

// String implements fmt.Stringer.
func (b *BinOp) String() string {
	return fmt.Sprintf("%s = %s %s %s", b.Dst, b.Src1, b.Op, b.Src2)
}

// Check returns an error wrapping ErrUnsupportedInstruction unless instr is a *Move or a *BinOp tagged with the
// matching Kind.
func Check(pos int, instr Instruction) error {
	var ok bool
	switch instr.Kind() {
	case KindMove:
		_, ok = instr.(*Move)
	case KindBinOp:
		_, ok = instr.(*BinOp)
	}
	if !ok {
		return fmt.Errorf("instruction %d (%T): %w", pos, instr, ErrUnsupportedInstruction)
	}
	return nil
}

// Variables returns every variable of the block in order of first appearance.
// Within an instruction the operands come before the destination.
func Variables(block []Instruction) []Variable {
	seen := map[Variable]struct{}{}
	var ret []Variable
	add := func(v Variable) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			ret = append(ret, v)
		}
	}
	for _, instr := range block {
		for _, u := range instr.Uses() {
			add(u)
		}
		add(instr.Def())
	}
	return ret
}
