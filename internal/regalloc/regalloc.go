// Package regalloc assigns the variables of a straight-line block to the three machine registers, spilling to memory
// when more than three values are live at once.
//
// References:
//   - https://en.wikipedia.org/wiki/Register_allocation#Local_register_allocation
//   - Belady, "A study of replacement algorithms for a virtual-storage computer" (evict the farthest next use).
package regalloc

import (
	"fmt"
	"io"

	"github.com/tac3/tac3/internal/asm"
	"github.com/tac3/tac3/internal/nextuse"
	"github.com/tac3/tac3/internal/tac"
)

// Allocator is the register allocation policy consulted by the code generator.
//
// An Allocator is single-owner mutable state: use one per block, and never share one between blocks processed
// concurrently.
type Allocator interface {
	fmt.Stringer

	// EnsureResident returns the register holding v, loading it first if needed.
	// When no register is free, a victim is stored to memory and its register reused.
	EnsureResident(v tac.Variable, e nextuse.Entry, emit asm.Emitter) asm.Register
	// TryReuseDeadOperand returns the register of v when v is resident and has no future use, so that the register
	// can receive the destination without an eviction or a load.
	TryReuseDeadOperand(v tac.Variable, e nextuse.Entry) (asm.Register, bool)
	// SelectVictim chooses the occupied, unpinned register to evict next. It has no side effects.
	SelectVictim(e nextuse.Entry) (asm.Register, tac.Variable)
	// AcquireDestination returns a free register for a destination, evicting a victim if none is free.
	AcquireDestination(e nextuse.Entry, emit asm.Emitter) asm.Register
	// Define binds v to r after an instruction wrote v into r. Whatever r held before, and the register previously
	// holding v, lose residency without a store.
	Define(v tac.Variable, r asm.Register)
	// Invalidate drops the residency of v without a store, e.g. after v was written directly to memory.
	Invalidate(v tac.Variable)
	// Pin excludes r from victim selection until Unpin is called.
	Pin(r asm.Register)
	// Unpin releases every pinned register.
	Unpin()
	// Resident returns the register holding v.
	Resident(v tac.Variable) (asm.Register, bool)
	// Residents returns a copy of the current variable to register binding.
	Residents() map[tac.Variable]asm.Register
	// Validate checks that the free and occupied registers partition the register set, and that the resident
	// variables map one-to-one onto the occupied registers.
	Validate() error
	// SetTrace sets the writer receiving one line per allocation decision. nil disables tracing.
	SetTrace(w io.Writer)
}

var (
	_ Allocator = &RegisterFile{}
	_ Allocator = &FixedSlot{}
)

// RegisterFile is the next-use aware Allocator: it evicts the variable needed farthest in the future, breaking ties
// by least recent access, and reuses the register of a dead operand for the destination.
type RegisterFile struct {
	state
}

// NewRegisterFile returns an empty RegisterFile.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{state: newState()}
}

// EnsureResident implements Allocator.EnsureResident.
func (f *RegisterFile) EnsureResident(v tac.Variable, e nextuse.Entry, emit asm.Emitter) asm.Register {
	return f.ensureResident(v, emit, func() (asm.Register, tac.Variable) {
		return f.SelectVictim(e)
	})
}

// TryReuseDeadOperand implements Allocator.TryReuseDeadOperand.
func (f *RegisterFile) TryReuseDeadOperand(v tac.Variable, e nextuse.Entry) (asm.Register, bool) {
	r, ok := f.residency[v]
	if !ok || !e.Distance(v).IsUnbounded() {
		return asm.NilRegister, false
	}
	f.logf("reuse %s of dead %s", r, v)
	return r, true
}

// SelectVictim implements Allocator.SelectVictim.
//
// Candidates are ordered by next-use distance descending, then by recency ascending, then by register order.
func (f *RegisterFile) SelectVictim(e nextuse.Entry) (asm.Register, tac.Variable) {
	var (
		victimReg  asm.Register
		victim     tac.Variable
		victimDist nextuse.Distance
		victimAge  uint64
	)
	f.evictable(func(r asm.Register, v tac.Variable) {
		d, age := e.Distance(v), f.recency[v]
		if victimReg != asm.NilRegister {
			if c := d.Compare(victimDist); c < 0 || (c == 0 && age >= victimAge) {
				return
			}
		}
		victimReg, victim, victimDist, victimAge = r, v, d, age
	})
	if victimReg == asm.NilRegister {
		panic(fmt.Sprintf("BUG: no evictable register: %s", f))
	}
	return victimReg, victim
}

// AcquireDestination implements Allocator.AcquireDestination.
func (f *RegisterFile) AcquireDestination(e nextuse.Entry, emit asm.Emitter) asm.Register {
	return f.acquireDestination(emit, func() (asm.Register, tac.Variable) {
		return f.SelectVictim(e)
	})
}
