// Package amd64 lowers programs for the three register machine to amd64 machine code.
//
// Machine registers R1, R2 and R3 are AX, DX and CX. Variables live in 8-byte slots of a memory block whose address
// is passed in DI, so the generated code follows the System V calling convention for `void f(int64_t *mem)`. Every
// register written, including the scratch R11, is caller-saved there, so no prologue is needed.
//
// Please refer to https://www.felixcloutier.com/x86/index.html if unfamiliar with amd64 instructions used here.
// Note that the x86 package used here prefixes all the instructions with "A", e.g. MOVQ is given as x86.AMOVQ.
package amd64

import (
	"errors"
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/tac3/tac3/internal/asm"
	"github.com/tac3/tac3/internal/tac"
)

// ErrUnsupportedOperator is returned for operators without an amd64 lowering.
var ErrUnsupportedOperator = errors.New("unsupported operator")

const (
	// reservedRegisterForMemory holds the base address of the variable slots.
	reservedRegisterForMemory = x86.REG_DI
	// reservedRegisterForTemporary is the scratch register for non-commutative operations whose destination is the
	// second operand.
	reservedRegisterForTemporary = x86.REG_R11
	// slotSize is the size in bytes of one variable slot.
	slotSize = 8
)

// Register returns the amd64 register for r.
func Register(r asm.Register) (int16, error) {
	switch r {
	case asm.R1:
		return x86.REG_AX, nil
	case asm.R2:
		return x86.REG_DX, nil
	case asm.R3:
		return x86.REG_CX, nil
	default:
		return 0, fmt.Errorf("invalid register %d", r)
	}
}

// Layout maps each variable to the index of its memory slot.
type Layout map[tac.Variable]int

// NewLayout assigns slots in order of first appearance in block.
func NewLayout(block []tac.Instruction) Layout {
	vs := tac.Variables(block)
	ret := make(Layout, len(vs))
	for i, v := range vs {
		ret[v] = i
	}
	return ret
}

// offset returns the offset in bytes of the slot of v from the base address.
func (l Layout) offset(v tac.Variable) (int64, error) {
	i, ok := l[v]
	if !ok {
		return 0, fmt.Errorf("variable %s has no slot", v)
	}
	return int64(i) * slotSize, nil
}

type operator struct {
	as          obj.As
	commutative bool
}

var operators = map[string]operator{
	"+": {as: x86.AADDQ, commutative: true},
	"-": {as: x86.ASUBQ},
	"*": {as: x86.AIMULQ, commutative: true},
	"&": {as: x86.AANDQ, commutative: true},
	"|": {as: x86.AORQ, commutative: true},
	"^": {as: x86.AXORQ, commutative: true},
}

type assembler struct {
	b      *goasm.Builder
	layout Layout
}

// Assemble returns the machine code of prog followed by RET.
func Assemble(prog []asm.Instruction, layout Layout) ([]byte, error) {
	// We can choose arbitrary number instead of 1024 which indicates the cache size in the builder.
	b, err := goasm.NewBuilder("amd64", 1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new assembly builder: %w", err)
	}
	a := &assembler{b: b, layout: layout}
	for i, instr := range prog {
		if err := a.compile(instr); err != nil {
			return nil, fmt.Errorf("failed to assemble instruction %d (%s): %w", i, instr, err)
		}
	}
	ret := a.b.NewProg()
	ret.As = obj.ARET
	a.b.AddInstruction(ret)
	return a.b.Assemble(), nil
}

func (a *assembler) compile(instr asm.Instruction) error {
	switch instr.Kind {
	case asm.KindLoad:
		return a.compileLoad(instr)
	case asm.KindStore:
		return a.compileStore(instr)
	case asm.KindOp:
		return a.compileOp(instr)
	default:
		return fmt.Errorf("invalid instruction kind %d", instr.Kind)
	}
}

func (a *assembler) compileLoad(instr asm.Instruction) error {
	reg, err := Register(instr.Dst)
	if err != nil {
		return err
	}
	offset, err := a.layout.offset(instr.Var)
	if err != nil {
		return err
	}
	load := a.b.NewProg()
	load.As = x86.AMOVQ
	load.From.Type = obj.TYPE_MEM
	load.From.Reg = reservedRegisterForMemory
	load.From.Offset = offset
	load.To.Type = obj.TYPE_REG
	load.To.Reg = reg
	a.b.AddInstruction(load)
	return nil
}

func (a *assembler) compileStore(instr asm.Instruction) error {
	reg, err := Register(instr.Dst)
	if err != nil {
		return err
	}
	offset, err := a.layout.offset(instr.Var)
	if err != nil {
		return err
	}
	store := a.b.NewProg()
	store.As = x86.AMOVQ
	store.From.Type = obj.TYPE_REG
	store.From.Reg = reg
	store.To.Type = obj.TYPE_MEM
	store.To.Reg = reservedRegisterForMemory
	store.To.Offset = offset
	a.b.AddInstruction(store)
	return nil
}

// compileOp lowers the three-address `dst = src1 op src2` to the two-address form `dst op= src`.
func (a *assembler) compileOp(instr asm.Instruction) error {
	op, ok := operators[instr.Op]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnsupportedOperator, instr.Op)
	}
	var regs [3]int16
	for i, r := range [3]asm.Register{instr.Dst, instr.Src1, instr.Src2} {
		reg, err := Register(r)
		if err != nil {
			return err
		}
		regs[i] = reg
	}
	dst, src1, src2 := regs[0], regs[1], regs[2]

	switch {
	case dst == src1:
		a.compileRegisterToRegister(op.as, src2, dst)
	case dst == src2 && op.commutative:
		a.compileRegisterToRegister(op.as, src1, dst)
	case dst == src2:
		// Computing in place would clobber src2 before it is read.
		a.compileRegisterToRegister(x86.AMOVQ, src1, reservedRegisterForTemporary)
		a.compileRegisterToRegister(op.as, src2, reservedRegisterForTemporary)
		a.compileRegisterToRegister(x86.AMOVQ, reservedRegisterForTemporary, dst)
	default:
		a.compileRegisterToRegister(x86.AMOVQ, src1, dst)
		a.compileRegisterToRegister(op.as, src2, dst)
	}
	return nil
}

func (a *assembler) compileRegisterToRegister(as obj.As, from, to int16) {
	inst := a.b.NewProg()
	inst.As = as
	inst.From.Type = obj.TYPE_REG
	inst.From.Reg = from
	inst.To.Type = obj.TYPE_REG
	inst.To.Reg = to
	a.b.AddInstruction(inst)
}
