package nextuse

import (
	"fmt"
	"math"
)

// Distance is the number of instructions until a variable is next read, or Unbounded if it is never read again.
//
// The zero value is Unbounded, so a missing map entry and an explicit Unbounded read the same.
type Distance struct {
	n       uint32
	bounded bool
}

// Unbounded means "no future use".
var Unbounded = Distance{}

// Finite returns the finite distance n.
func Finite(n uint32) Distance {
	return Distance{n: n, bounded: true}
}

// IsUnbounded returns true if d is Unbounded.
func (d Distance) IsUnbounded() bool {
	return !d.bounded
}

// Value returns the finite distance, and false if d is Unbounded.
func (d Distance) Value() (uint32, bool) {
	return d.n, d.bounded
}

// Inc returns d+1. Unbounded stays Unbounded, and finite distances saturate at math.MaxUint32.
func (d Distance) Inc() Distance {
	if !d.bounded || d.n == math.MaxUint32 {
		return d
	}
	return Finite(d.n + 1)
}

// Compare returns -1, 0 or +1 depending on whether d is nearer than, equal to or farther than o.
// Every finite distance is nearer than Unbounded.
func (d Distance) Compare(o Distance) int {
	switch {
	case d.bounded && !o.bounded:
		return -1
	case !d.bounded && o.bounded:
		return 1
	case d.n < o.n:
		return -1
	case d.n > o.n:
		return 1
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (d Distance) String() string {
	if !d.bounded {
		return "inf"
	}
	return fmt.Sprintf("%d", d.n)
}
