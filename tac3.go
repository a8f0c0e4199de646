// Package tac3 rewrites straight-line three-address code into code for a machine with three registers, spilling to
// memory when more than three values are live at once.
//
// Source is one instruction per line, either `dst = src` or `dst = src1 op src2`. Blank lines and lines starting
// with '#' are ignored:
//
//	t = a - b
//	u = a - c
//	v = t + u
//
// Compile returns a Program, which renders as `LD`/`ST`/operator instructions, runs on a simulated machine, and
// lowers to amd64.
package tac3

import (
	"fmt"

	"github.com/tac3/tac3/internal/asm"
	"github.com/tac3/tac3/internal/asm/amd64"
	"github.com/tac3/tac3/internal/codegen"
	"github.com/tac3/tac3/internal/interpreter"
	"github.com/tac3/tac3/internal/tac"
)

// ParseError is returned by Compile when the source is malformed.
type ParseError = tac.ParseError

var (
	// ErrUnsupportedOperator is returned by Program.Assemble for operators without an amd64 lowering.
	ErrUnsupportedOperator = amd64.ErrUnsupportedOperator
	// ErrDivisionByZero is returned by Program.Run when a '/' or '%' divides by zero.
	ErrDivisionByZero = interpreter.ErrDivisionByZero
	// ErrUnknownOperator is returned by Program.Run for operators without an interpretation.
	ErrUnknownOperator = interpreter.ErrUnknownOperator
)

// Program is the result of Compile. It is immutable and safe for concurrent use.
type Program struct {
	block []tac.Instruction
	res   *codegen.Result
}

// Compile parses source and allocates registers for it. config defaults to NewConfig when nil.
//
// Compile is safe for concurrent use: every call uses its own allocator.
func Compile(source string, config *Config) (*Program, error) {
	if config == nil {
		config = NewConfig()
	}
	block, err := tac.Parse(source)
	if err != nil {
		return nil, err
	}
	alloc, err := config.newAllocator()
	if err != nil {
		return nil, err
	}
	opts := []codegen.Option{codegen.WithAllocator(alloc), codegen.WithValidation(config.validate)}
	if config.trace != nil {
		opts = append(opts, codegen.WithTrace(config.trace))
	}
	res, err := codegen.Generate(block, opts...)
	if err != nil {
		return nil, err
	}
	return &Program{block: block, res: res}, nil
}

// Source returns the parsed source in canonical form, one instruction per line.
func (p *Program) Source() string {
	return tac.Format(p.block)
}

// Lines returns the emitted instructions, one per element.
func (p *Program) Lines() []string {
	return asm.Lines(p.res.Code)
}

// String implements fmt.Stringer, returning the emitted instructions one per line.
func (p *Program) String() string {
	return asm.Format(p.res.Code)
}

// NextUse returns the next-use table the allocation was driven by, one line per source instruction.
func (p *Program) NextUse() string {
	return p.res.NextUse.Format()
}

// Residents returns the register holding each variable at the end of the program, e.g. "t" -> "R3". Variables not
// listed have their latest value in memory.
func (p *Program) Residents() map[string]string {
	ret := make(map[string]string, len(p.res.Residents))
	for v, r := range p.res.Residents {
		ret[string(v)] = r.String()
	}
	return ret
}

// Variables returns every variable of the source in order of first appearance.
func (p *Program) Variables() []string {
	vs := tac.Variables(p.block)
	ret := make([]string, len(vs))
	for i, v := range vs {
		ret[i] = string(v)
	}
	return ret
}

// Assemble returns amd64 machine code for the program. The code expects the address of the variable slots in DI,
// with slots in the order of Variables, 8 bytes each.
func (p *Program) Assemble() ([]byte, error) {
	return amd64.Assemble(p.res.Code, amd64.NewLayout(p.block))
}

// Run executes the program on the simulated machine with memory initialized from mem, and returns the value of every
// variable when the program ends, whether in a register or in memory. Variables missing from mem start at zero.
func (p *Program) Run(mem map[string]int64) (map[string]int64, error) {
	m := interpreter.NewMachine(toMemory(mem))
	if err := m.Run(p.res.Code); err != nil {
		return nil, err
	}
	return fromMemory(m.Final(p.res.Residents)), nil
}

// Verify runs both the source and the program from mem, and returns an error naming the first variable, in order
// of Variables, whose final values differ.
func (p *Program) Verify(mem map[string]int64) error {
	exp, err := interpreter.RunTAC(p.block, toMemory(mem))
	if err != nil {
		return err
	}
	actual, err := p.Run(mem)
	if err != nil {
		return err
	}
	for _, v := range p.Variables() {
		if e, a := exp[tac.Variable(v)], actual[v]; e != a {
			return fmt.Errorf("variable %s: expected %d, but got %d", v, e, a)
		}
	}
	return nil
}

// FormatMemory renders mem as space-separated `name=value` pairs sorted by name.
func FormatMemory(mem map[string]int64) string {
	return toMemory(mem).String()
}

func toMemory(mem map[string]int64) interpreter.Memory {
	ret := make(interpreter.Memory, len(mem))
	for v, x := range mem {
		ret[tac.Variable(v)] = x
	}
	return ret
}

func fromMemory(mem interpreter.Memory) map[string]int64 {
	ret := make(map[string]int64, len(mem))
	for v, x := range mem {
		ret[string(v)] = x
	}
	return ret
}
