// Package nextuse computes, for each position of a straight-line block, how far ahead every variable is next read.
//
// The analysis is local to one block: there are no loops, joins or live-out sets, so a variable that is not read
// later in the same block is treated as dead.
package nextuse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tac3/tac3/internal/tac"
)

// Entry maps variables to their next-use Distance. Variables which are absent are Unbounded.
type Entry struct {
	m map[tac.Variable]Distance
}

// NewEntry returns an Entry holding a copy of distances.
func NewEntry(distances map[tac.Variable]Distance) Entry {
	e := Entry{m: make(map[tac.Variable]Distance, len(distances))}
	for v, d := range distances {
		e.set(v, d)
	}
	return e
}

// Distance returns the next-use distance of v, Unbounded if v is not present.
func (e Entry) Distance(v tac.Variable) Distance {
	return e.m[v]
}

// Len returns the number of variables with an explicit entry.
func (e Entry) Len() int {
	return len(e.m)
}

// inc returns a copy of e with every distance incremented.
func (e Entry) inc() Entry {
	ret := Entry{m: make(map[tac.Variable]Distance, len(e.m))}
	for v, d := range e.m {
		if d = d.Inc(); !d.IsUnbounded() {
			ret.m[v] = d
		}
	}
	return ret
}

func (e Entry) set(v tac.Variable, d Distance) {
	if d.IsUnbounded() {
		delete(e.m, v)
	} else {
		e.m[v] = d
	}
}

// Variables returns the variables with a finite distance, sorted by name.
func (e Entry) Variables() []tac.Variable {
	ret := make([]tac.Variable, 0, len(e.m))
	for v := range e.m {
		ret = append(ret, v)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	vs := e.Variables()
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%s:%s", v, e.m[v])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Table holds one Entry per instruction position: the distances as of immediately before that instruction.
type Table []Entry

// Analyze runs a single backward pass over block.
//
// At each position, going from the last instruction to the first, the distances of the following position are
// incremented, the operands of the instruction are set to 1, and then the destination is set to Unbounded since its
// previous value is not needed by anything from here on.
func Analyze(block []tac.Instruction) (Table, error) {
	table := make(Table, len(block))
	future := Entry{}
	for i := len(block) - 1; i >= 0; i-- {
		instr := block[i]
		if err := tac.Check(i, instr); err != nil {
			return nil, err
		}
		cur := future.inc()
		for _, u := range instr.Uses() {
			cur.set(u, Finite(1))
		}
		cur.set(instr.Def(), Unbounded)
		table[i] = cur
		future = cur
	}
	return table, nil
}

// After returns the distances as of immediately after the instruction at pos, i.e. the entry of the next position.
// A variable read at position j > pos, and not redefined in between, is at distance j-pos.
func (t Table) After(pos int) Entry {
	if pos+1 < len(t) {
		return t[pos+1]
	}
	return Entry{}
}

// Format renders the table one position per line.
func (t Table) Format() string {
	var b strings.Builder
	for i, e := range t {
		fmt.Fprintf(&b, "%d: %s\n", i, e)
	}
	return b.String()
}
