// Package codegen rewrites a straight-line block of three-address code into machine instructions for the three
// register machine, consulting a regalloc.Allocator driven by the block's next-use table.
package codegen

import (
	"fmt"
	"io"

	"github.com/tac3/tac3/internal/asm"
	"github.com/tac3/tac3/internal/buildoptions"
	"github.com/tac3/tac3/internal/nextuse"
	"github.com/tac3/tac3/internal/regalloc"
	"github.com/tac3/tac3/internal/tac"
)

// Result is the output of Generate.
type Result struct {
	// Code is the emitted program.
	Code []asm.Instruction
	// Residents is the variable to register binding at the end of the block. A resident variable's latest value
	// may only exist in its register.
	Residents map[tac.Variable]asm.Register
	// NextUse is the table that drove the allocation.
	NextUse nextuse.Table
}

// Option configures Generate.
type Option func(*generator)

// WithAllocator sets the allocator used for the block. It must be fresh, and is owned by Generate from then on.
// Defaults to regalloc.NewRegisterFile.
func WithAllocator(a regalloc.Allocator) Option {
	return func(g *generator) {
		g.alloc = a
	}
}

// WithValidation enables checking the allocator invariants after every instruction.
// Defaults to buildoptions.RegAllocValidationEnabled.
func WithValidation(enabled bool) Option {
	return func(g *generator) {
		g.validate = enabled
	}
}

// WithTrace writes one line per generated instruction and per allocation decision to w.
func WithTrace(w io.Writer) Option {
	return func(g *generator) {
		g.trace = w
	}
}

type generator struct {
	alloc    regalloc.Allocator
	validate bool
	trace    io.Writer
	buf      asm.Buffer
}

// Generate rewrites block in a single pass. It fails on the first instruction which is neither *tac.Move nor
// *tac.BinOp, and, with validation enabled, on the first allocator invariant violation.
func Generate(block []tac.Instruction, opts ...Option) (*Result, error) {
	g := &generator{validate: buildoptions.RegAllocValidationEnabled}
	for _, opt := range opts {
		opt(g)
	}
	if g.alloc == nil {
		g.alloc = regalloc.NewRegisterFile()
	}
	if g.trace != nil {
		g.alloc.SetTrace(g.trace)
	}

	table, err := nextuse.Analyze(block)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze next uses: %w", err)
	}
	if buildoptions.PrintNextUseTable {
		fmt.Printf("next-use table:\n%s\n", table.Format())
	}

	for i, instr := range block {
		if g.trace != nil {
			fmt.Fprintf(g.trace, "%d: %s %s\n", i, instr, table[i])
		}
		switch in := instr.(type) {
		case *tac.Move:
			g.generateMove(in, table[i])
		case *tac.BinOp:
			g.generateBinOp(in, table[i])
		default:
			return nil, fmt.Errorf("failed to generate instruction %d: %w", i, tac.Check(i, instr))
		}
		if g.validate {
			if err := g.alloc.Validate(); err != nil {
				return nil, fmt.Errorf("BUG: after instruction %d (%s): %w", i, instr, err)
			}
		}
	}

	return &Result{Code: g.buf.Code, Residents: g.alloc.Residents(), NextUse: table}, nil
}

// generateMove writes the source register straight to the destination's memory. The destination never becomes
// resident, and a register copy of its previous value is dropped.
func (g *generator) generateMove(in *tac.Move, e nextuse.Entry) {
	r := g.alloc.EnsureResident(in.Src, e, &g.buf)
	g.buf.Emit(asm.Store(in.Dst, r))
	if in.Dst != in.Src {
		g.alloc.Invalidate(in.Dst)
	}
}

// generateBinOp loads both operands and writes the result into a dead operand's register when possible, otherwise
// into a free or evicted one.
//
// Registers holding operands of this instruction are pinned so that loading the second operand, or acquiring the
// destination, cannot evict them.
func (g *generator) generateBinOp(in *tac.BinOp, e nextuse.Entry) {
	defer g.alloc.Unpin()

	dst, ok := g.alloc.TryReuseDeadOperand(in.Src1, e)
	if !ok {
		dst, ok = g.alloc.TryReuseDeadOperand(in.Src2, e)
	}
	if ok {
		g.alloc.Pin(dst)
	}

	r1 := g.alloc.EnsureResident(in.Src1, e, &g.buf)
	g.alloc.Pin(r1)
	r2 := g.alloc.EnsureResident(in.Src2, e, &g.buf)
	g.alloc.Pin(r2)

	if !ok {
		dst = g.alloc.AcquireDestination(e, &g.buf)
	}

	g.buf.Emit(asm.Op(in.Op, dst, r1, r2))
	g.alloc.Define(in.Dst, dst)
}
