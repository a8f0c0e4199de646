package regalloc

import (
	"fmt"

	"github.com/tac3/tac3/internal/asm"
	"github.com/tac3/tac3/internal/nextuse"
	"github.com/tac3/tac3/internal/tac"
)

// FixedSlot is the baseline Allocator without next-use awareness: it always evicts from the first evictable
// register (R1 unless pinned), and never reuses the register of a dead operand.
//
// It exists to differentially test RegisterFile: both must produce programs which compute the same values.
type FixedSlot struct {
	state
}

// NewFixedSlot returns an empty FixedSlot.
func NewFixedSlot() *FixedSlot {
	return &FixedSlot{state: newState()}
}

// EnsureResident implements Allocator.EnsureResident.
func (f *FixedSlot) EnsureResident(v tac.Variable, e nextuse.Entry, emit asm.Emitter) asm.Register {
	return f.ensureResident(v, emit, func() (asm.Register, tac.Variable) {
		return f.SelectVictim(e)
	})
}

// TryReuseDeadOperand implements Allocator.TryReuseDeadOperand. It always returns false.
func (f *FixedSlot) TryReuseDeadOperand(tac.Variable, nextuse.Entry) (asm.Register, bool) {
	return asm.NilRegister, false
}

// SelectVictim implements Allocator.SelectVictim. The next-use entry is ignored.
func (f *FixedSlot) SelectVictim(nextuse.Entry) (r asm.Register, v tac.Variable) {
	f.evictable(func(cr asm.Register, cv tac.Variable) {
		if r == asm.NilRegister {
			r, v = cr, cv
		}
	})
	if r == asm.NilRegister {
		panic(fmt.Sprintf("BUG: no evictable register: %s", f))
	}
	return
}

// AcquireDestination implements Allocator.AcquireDestination.
func (f *FixedSlot) AcquireDestination(e nextuse.Entry, emit asm.Emitter) asm.Register {
	return f.acquireDestination(emit, func() (asm.Register, tac.Variable) {
		return f.SelectVictim(e)
	})
}
