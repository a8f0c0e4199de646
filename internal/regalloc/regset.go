package regalloc

import (
	"strings"

	"github.com/tac3/tac3/internal/asm"
)

// NewRegSet returns a new RegSet with the given registers.
func NewRegSet(regs ...asm.Register) RegSet {
	var ret RegSet
	for _, r := range regs {
		ret = ret.add(r)
	}
	return ret
}

// RegSet represents a set of registers.
type RegSet uint8

func (rs RegSet) has(r asm.Register) bool {
	return rs&(1<<uint(r)) != 0
}

func (rs RegSet) add(r asm.Register) RegSet {
	if !r.Valid() {
		return rs
	}
	return rs | 1<<uint(r)
}

// Range calls f for each register of the set in allocation order.
func (rs RegSet) Range(f func(r asm.Register)) {
	for _, r := range asm.Registers {
		if rs.has(r) {
			f(r)
		}
	}
}

// String implements fmt.Stringer.
func (rs RegSet) String() string {
	var ret []string
	rs.Range(func(r asm.Register) {
		ret = append(ret, r.String())
	})
	return "[" + strings.Join(ret, ", ") + "]"
}
