package interpreter

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tac3/tac3/internal/asm"
	"github.com/tac3/tac3/internal/tac"
)

func TestEval(t *testing.T) {
	for _, tc := range []struct {
		op   string
		x, y int64
		exp  int64
	}{
		{op: "+", x: 1, y: 2, exp: 3},
		{op: "ADD", x: math.MaxInt64, y: 1, exp: math.MinInt64},
		{op: "-", x: 1, y: 2, exp: -1},
		{op: "sub", x: 5, y: 2, exp: 3},
		{op: "*", x: -3, y: 4, exp: -12},
		{op: "/", x: 7, y: 2, exp: 3},
		{op: "%", x: -7, y: 2, exp: -1},
		{op: "&", x: 0b1100, y: 0b1010, exp: 0b1000},
		{op: "|", x: 0b1100, y: 0b1010, exp: 0b1110},
		{op: "xor", x: 0b1100, y: 0b1010, exp: 0b0110},
		{op: "<<", x: 1, y: 65, exp: 2},
		{op: ">>", x: -8, y: 1, exp: -4},
	} {
		actual, err := Eval(tc.op, tc.x, tc.y)
		require.NoError(t, err, tc.op)
		require.Equal(t, tc.exp, actual, tc.op)
	}

	_, err := Eval("/", 1, 0)
	require.True(t, errors.Is(err, ErrDivisionByZero))
	_, err = Eval("rem", 1, 0)
	require.True(t, errors.Is(err, ErrDivisionByZero))
	_, err = Eval("**", 1, 2)
	require.True(t, errors.Is(err, ErrUnknownOperator))
	require.EqualError(t, err, `unknown operator "**"`)
}

func TestRunTAC(t *testing.T) {
	block, err := tac.Parse(`
t = a - b
u = a - c
v = t + u
a = d
d = v + u
`)
	require.NoError(t, err)

	mem := Memory{"a": 10, "b": 3, "c": 4, "d": 7}
	final, err := RunTAC(block, mem)
	require.NoError(t, err)
	require.Equal(t, "a=7 b=3 c=4 d=19 t=7 u=6 v=13", final.String())
	require.Equal(t, int64(10), mem["a"], "input memory must not be modified")

	words, err := tac.Parse("p = a mul b\nq = p sub c\nr = q XOR a")
	require.NoError(t, err)
	final, err = RunTAC(words, Memory{"a": 10, "b": 3, "c": 4})
	require.NoError(t, err)
	require.Equal(t, "a=10 b=3 c=4 p=30 q=26 r=16", final.String())

	_, err = RunTAC([]tac.Instruction{&tac.BinOp{Dst: "x", Src1: "a", Op: "/", Src2: "zero"}}, Memory{})
	require.True(t, errors.Is(err, ErrDivisionByZero))
	require.EqualError(t, err, "instruction 0 (x = a / zero): integer divide by zero")
}

func TestMachine_Run(t *testing.T) {
	m := NewMachine(Memory{"a": 5, "b": 2})
	err := m.Run([]asm.Instruction{
		asm.Load(asm.R1, "a"),
		asm.Load(asm.R2, "b"),
		asm.Op("-", asm.R3, asm.R1, asm.R2),
		asm.Store("t", asm.R3),
		asm.Op("*", asm.R1, asm.R3, asm.R3),
	})
	require.NoError(t, err)
	require.Equal(t, [asm.NumRegisters]int64{9, 2, 3}, m.Registers)
	require.Equal(t, Memory{"a": 5, "b": 2, "t": 3}, m.Memory)

	final := m.Final(map[tac.Variable]asm.Register{"s": asm.R1})
	require.Equal(t, Memory{"a": 5, "b": 2, "t": 3, "s": 9}, final)
}

func TestMachine_Run_errors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		prog   []asm.Instruction
		expErr string
	}{
		{
			name:   "nil register",
			prog:   []asm.Instruction{asm.Load(asm.NilRegister, "a")},
			expErr: "instruction 0 (LD  nil, a): invalid register 0",
		},
		{
			name:   "invalid operand",
			prog:   []asm.Instruction{asm.Op("+", asm.R1, asm.R2, asm.Register(9))},
			expErr: "instruction 0 (+   R1, R2, nil): invalid register 9",
		},
		{
			name:   "unknown operator",
			prog:   []asm.Instruction{asm.Op("pow", asm.R1, asm.R2, asm.R3)},
			expErr: `instruction 0 (POW R1, R2, R3): unknown operator "pow"`,
		},
		{
			name:   "invalid kind",
			prog:   []asm.Instruction{{Dst: asm.R1}},
			expErr: "instruction 0 (invalid): invalid instruction kind 0",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := NewMachine(nil).Run(tc.prog)
			require.EqualError(t, err, tc.expErr)
		})
	}
}
