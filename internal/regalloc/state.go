package regalloc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tac3/tac3/internal/asm"
	"github.com/tac3/tac3/internal/buildoptions"
	"github.com/tac3/tac3/internal/tac"
)

// ErrInvariantViolation is returned by Validate when the register file is inconsistent.
var ErrInvariantViolation = errors.New("register file invariant violated")

// slot is the state of one register: free, or occupied by exactly one variable.
type slot struct {
	occupied bool
	v        tac.Variable
}

// state is the bookkeeping shared by every Allocator implementation.
//
// The slots array is the single source of truth for which registers are free. residency is its reverse index and
// is only ever updated together with slots, in bind and unbind.
type state struct {
	slots     [asm.NumRegisters]slot
	residency map[tac.Variable]asm.Register
	// clock is incremented on every access, and recency records the clock of the last access of each variable.
	clock   uint64
	recency map[tac.Variable]uint64
	// spills maps each variable ever stored by an eviction to its memory slot, numbered in first-spill order.
	spills map[tac.Variable]int
	// pinned registers hold operands of the instruction being generated and are never evicted.
	pinned RegSet
	trace  io.Writer
}

func newState() state {
	return state{
		residency: map[tac.Variable]asm.Register{},
		recency:   map[tac.Variable]uint64{},
		spills:    map[tac.Variable]int{},
	}
}

func (s *state) logf(format string, args ...interface{}) {
	if buildoptions.RegAllocLoggingEnabled {
		fmt.Printf(format+"\n", args...)
	}
	if s.trace != nil {
		fmt.Fprintf(s.trace, format+"\n", args...)
	}
}

// SetTrace implements Allocator.SetTrace.
func (s *state) SetTrace(w io.Writer) {
	s.trace = w
}

func (s *state) touch(v tac.Variable) {
	s.clock++
	s.recency[v] = s.clock
}

// Recency returns the clock value of the last access to v, and false if v was never accessed.
func (s *state) Recency(v tac.Variable) (uint64, bool) {
	c, ok := s.recency[v]
	return c, ok
}

func (s *state) bind(v tac.Variable, r asm.Register) {
	sl := &s.slots[r.Index()]
	if sl.occupied {
		panic(fmt.Sprintf("BUG: binding %s to %s which holds %s", v, r, sl.v))
	}
	if prev, ok := s.residency[v]; ok {
		panic(fmt.Sprintf("BUG: binding %s to %s while it is resident in %s", v, r, prev))
	}
	sl.occupied, sl.v = true, v
	s.residency[v] = r
}

func (s *state) unbind(v tac.Variable) asm.Register {
	r, ok := s.residency[v]
	if !ok {
		panic(fmt.Sprintf("BUG: unbinding %s which is not resident", v))
	}
	s.slots[r.Index()] = slot{}
	delete(s.residency, v)
	return r
}

// firstFree returns the lowest-ordered free register.
func (s *state) firstFree() (asm.Register, bool) {
	for _, r := range asm.Registers {
		if !s.slots[r.Index()].occupied {
			return r, true
		}
	}
	return asm.NilRegister, false
}

// evictable calls f for every occupied and unpinned register in allocation order.
func (s *state) evictable(f func(r asm.Register, v tac.Variable)) {
	for _, r := range asm.Registers {
		if sl := s.slots[r.Index()]; sl.occupied && !s.pinned.has(r) {
			f(r, sl.v)
		}
	}
}

// spill stores victim from r to memory and frees r.
func (s *state) spill(victim tac.Variable, r asm.Register, emit asm.Emitter) {
	emit.Emit(asm.Store(victim, r))
	if _, ok := s.spills[victim]; !ok {
		s.spills[victim] = len(s.spills)
	}
	s.unbind(victim)
}

// ensureResident makes v resident, evicting the register chosen by selectVictim when none is free.
func (s *state) ensureResident(v tac.Variable, emit asm.Emitter, selectVictim func() (asm.Register, tac.Variable)) asm.Register {
	if r, ok := s.residency[v]; ok {
		s.touch(v)
		return r
	}
	r, ok := s.firstFree()
	if !ok {
		var victim tac.Variable
		r, victim = selectVictim()
		s.logf("evict %s from %s to load %s", victim, r, v)
		s.spill(victim, r, emit)
	}
	s.bind(v, r)
	emit.Emit(asm.Load(r, v))
	s.logf("load %s into %s", v, r)
	s.touch(v)
	return r
}

// acquireDestination returns a free register, evicting the register chosen by selectVictim when none is free.
func (s *state) acquireDestination(emit asm.Emitter, selectVictim func() (asm.Register, tac.Variable)) asm.Register {
	if r, ok := s.firstFree(); ok {
		return r
	}
	r, victim := selectVictim()
	s.logf("evict %s from %s for a destination", victim, r)
	s.spill(victim, r, emit)
	return r
}

// Define implements Allocator.Define.
func (s *state) Define(v tac.Variable, r asm.Register) {
	if prev, ok := s.residency[v]; ok && prev != r {
		// The previous value of v is overwritten, so the register holding it is simply released.
		s.unbind(v)
	}
	if sl := s.slots[r.Index()]; sl.occupied && sl.v != v {
		s.logf("overwrite dead %s in %s", sl.v, r)
		s.unbind(sl.v)
	}
	if _, ok := s.residency[v]; !ok {
		s.bind(v, r)
	}
	s.logf("define %s in %s", v, r)
	s.touch(v)
}

// Invalidate implements Allocator.Invalidate.
func (s *state) Invalidate(v tac.Variable) {
	if r, ok := s.residency[v]; ok {
		s.logf("invalidate %s in %s", v, r)
		s.unbind(v)
	}
}

// Pin implements Allocator.Pin.
func (s *state) Pin(r asm.Register) {
	s.pinned = s.pinned.add(r)
}

// Unpin implements Allocator.Unpin.
func (s *state) Unpin() {
	s.pinned = 0
}

// Resident implements Allocator.Resident.
func (s *state) Resident(v tac.Variable) (asm.Register, bool) {
	r, ok := s.residency[v]
	return r, ok
}

// Residents implements Allocator.Residents.
func (s *state) Residents() map[tac.Variable]asm.Register {
	ret := make(map[tac.Variable]asm.Register, len(s.residency))
	for v, r := range s.residency {
		ret[v] = r
	}
	return ret
}

// Occupant returns the variable held by r, and false if r is free.
func (s *state) Occupant(r asm.Register) (tac.Variable, bool) {
	sl := s.slots[r.Index()]
	return sl.v, sl.occupied
}

// Free returns the free registers in allocation order.
func (s *state) Free() []asm.Register {
	var ret []asm.Register
	for _, r := range asm.Registers {
		if !s.slots[r.Index()].occupied {
			ret = append(ret, r)
		}
	}
	return ret
}

// SpillSlot returns the memory slot assigned to v by its first eviction.
func (s *state) SpillSlot(v tac.Variable) (int, bool) {
	i, ok := s.spills[v]
	return i, ok
}

// Spilled returns true if v has been evicted to memory and is not resident now.
func (s *state) Spilled(v tac.Variable) bool {
	_, spilled := s.spills[v]
	_, resident := s.residency[v]
	return spilled && !resident
}

// Validate implements Allocator.Validate.
func (s *state) Validate() error {
	occupied := 0
	for _, r := range asm.Registers {
		sl := s.slots[r.Index()]
		if !sl.occupied {
			continue
		}
		occupied++
		if back, ok := s.residency[sl.v]; !ok || back != r {
			return fmt.Errorf("%w: %s holds %s but %s is mapped to %s", ErrInvariantViolation, r, sl.v, sl.v, back)
		}
	}
	if occupied != len(s.residency) {
		return fmt.Errorf("%w: %d occupied registers but %d resident variables", ErrInvariantViolation, occupied, len(s.residency))
	}
	for v, r := range s.residency {
		if !r.Valid() {
			return fmt.Errorf("%w: %s is mapped to invalid register %d", ErrInvariantViolation, v, r)
		}
		if sl := s.slots[r.Index()]; !sl.occupied || sl.v != v {
			return fmt.Errorf("%w: %s is mapped to %s which is not occupied by it", ErrInvariantViolation, v, r)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (s *state) String() string {
	parts := make([]string, 0, asm.NumRegisters)
	for _, r := range asm.Registers {
		sl := s.slots[r.Index()]
		v := "-"
		if sl.occupied {
			v = string(sl.v)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", r, v))
	}
	return fmt.Sprintf("regs=[%s], pinned=%s", strings.Join(parts, ", "), s.pinned)
}
