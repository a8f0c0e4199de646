// Package interpreter executes three-address code against a variable store, and emitted machine code against
// three registers plus a memory indexed by variable name. Values are 64-bit two's complement integers and variables
// which were never written read as zero.
//
// It is the reference for checking that generated code computes the same values as its source block.
package interpreter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tac3/tac3/internal/asm"
	"github.com/tac3/tac3/internal/tac"
)

var (
	// ErrUnknownOperator is returned for operators without an interpretation.
	ErrUnknownOperator = errors.New("unknown operator")
	// ErrDivisionByZero is returned when the divisor of '/' or '%' is zero.
	ErrDivisionByZero = errors.New("integer divide by zero")
)

// Memory maps variables to their values.
type Memory map[tac.Variable]int64

// Clone returns a copy of m.
func (m Memory) Clone() Memory {
	ret := make(Memory, len(m))
	for v, x := range m {
		ret[v] = x
	}
	return ret
}

// String implements fmt.Stringer. Variables are sorted by name.
func (m Memory) String() string {
	vs := make([]string, 0, len(m))
	for v := range m {
		vs = append(vs, string(v))
	}
	sort.Strings(vs)
	for i, v := range vs {
		vs[i] = fmt.Sprintf("%s=%d", v, m[tac.Variable(v)])
	}
	return strings.Join(vs, " ")
}

// Eval applies the operator op. Operators are matched case-insensitively, and both the symbolic and the mnemonic
// spellings are accepted, e.g. "+" and "add".
func Eval(op string, x, y int64) (int64, error) {
	switch strings.ToLower(op) {
	case "+", "add":
		return x + y, nil
	case "-", "sub":
		return x - y, nil
	case "*", "mul":
		return x * y, nil
	case "/", "div":
		if y == 0 {
			return 0, ErrDivisionByZero
		}
		return x / y, nil
	case "%", "rem", "mod":
		if y == 0 {
			return 0, ErrDivisionByZero
		}
		return x % y, nil
	case "&", "and":
		return x & y, nil
	case "|", "or":
		return x | y, nil
	case "^", "xor":
		return x ^ y, nil
	case "<<", "shl":
		return x << (uint64(y) & 63), nil
	case ">>", "shr":
		return x >> (uint64(y) & 63), nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownOperator, op)
	}
}

// RunTAC executes block against a copy of mem and returns the final store.
func RunTAC(block []tac.Instruction, mem Memory) (Memory, error) {
	store := mem.Clone()
	for i, instr := range block {
		switch in := instr.(type) {
		case *tac.Move:
			store[in.Dst] = store[in.Src]
		case *tac.BinOp:
			x, err := Eval(in.Op, store[in.Src1], store[in.Src2])
			if err != nil {
				return nil, fmt.Errorf("instruction %d (%s): %w", i, in, err)
			}
			store[in.Dst] = x
		default:
			return nil, tac.Check(i, instr)
		}
	}
	return store, nil
}

// Machine is the three register target machine.
type Machine struct {
	Registers [asm.NumRegisters]int64
	Memory    Memory
}

// NewMachine returns a Machine whose memory is a copy of mem and whose registers are zero.
func NewMachine(mem Memory) *Machine {
	return &Machine{Memory: mem.Clone()}
}

// Run executes prog.
func (m *Machine) Run(prog []asm.Instruction) error {
	for i, instr := range prog {
		if err := m.step(instr); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", i, instr, err)
		}
	}
	return nil
}

func (m *Machine) step(instr asm.Instruction) error {
	regs := []asm.Register{instr.Dst}
	if instr.Kind == asm.KindOp {
		regs = append(regs, instr.Src1, instr.Src2)
	}
	for _, r := range regs {
		if !r.Valid() {
			return fmt.Errorf("invalid register %d", r)
		}
	}
	switch instr.Kind {
	case asm.KindLoad:
		m.Registers[instr.Dst.Index()] = m.Memory[instr.Var]
	case asm.KindStore:
		m.Memory[instr.Var] = m.Registers[instr.Dst.Index()]
	case asm.KindOp:
		x, err := Eval(instr.Op, m.Registers[instr.Src1.Index()], m.Registers[instr.Src2.Index()])
		if err != nil {
			return err
		}
		m.Registers[instr.Dst.Index()] = x
	default:
		return fmt.Errorf("invalid instruction kind %d", instr.Kind)
	}
	return nil
}

// Final returns the value of every variable after the program ran: the register for variables in residents, and
// memory for the rest.
func (m *Machine) Final(residents map[tac.Variable]asm.Register) Memory {
	ret := m.Memory.Clone()
	for v, r := range residents {
		ret[v] = m.Registers[r.Index()]
	}
	return ret
}
