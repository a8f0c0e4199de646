package tac3

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const spillSource = `
# Four values are live at once here.
x = a + b
y = c + d
p = a + x
q = b + y
`

func TestCompile(t *testing.T) {
	p, err := Compile("t = a + b", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"LD  R1, a", "LD  R2, b", "+   R3, R1, R2"}, p.Lines())
	require.Equal(t, "LD  R1, a\nLD  R2, b\n+   R3, R1, R2\n", p.String())
	require.Equal(t, "t = a + b\n", p.Source())
	require.Equal(t, []string{"a", "b", "t"}, p.Variables())
	require.Equal(t, map[string]string{"a": "R1", "b": "R2", "t": "R3"}, p.Residents())
}

func TestCompile_parseError(t *testing.T) {
	_, err := Compile("t = a +", nil)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, 1, perr.Line)
}

func TestCompile_policies(t *testing.T) {
	mem := map[string]int64{"a": 3, "b": 5, "c": 7, "d": 11}
	for _, policy := range []Policy{PolicyNextUse, PolicyFixedSlot} {
		policy := policy
		t.Run(policy.String(), func(t *testing.T) {
			p, err := Compile(spillSource, NewConfig().WithAllocator(policy))
			require.NoError(t, err)
			require.Contains(t, p.String(), "ST  ")
			require.NoError(t, p.Verify(mem))

			final, err := p.Run(mem)
			require.NoError(t, err)
			require.Equal(t, "a=3 b=5 c=7 d=11 p=11 q=23 x=8 y=18", FormatMemory(final))
		})
	}
}

func TestCompile_trace(t *testing.T) {
	var trace bytes.Buffer
	_, err := Compile(spillSource, NewConfig().WithTrace(&trace))
	require.NoError(t, err)
	require.Contains(t, trace.String(), "1: y = c + d {a:2, b:3, c:1, d:1, x:2}\nevict b from R2 to load c\n")
}

func TestCompile_concurrent(t *testing.T) {
	exp, err := Compile(spillSource, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := Compile(spillSource, nil)
			if err == nil {
				results[i] = p.String()
			}
		}()
	}
	wg.Wait()
	for _, actual := range results {
		require.Equal(t, exp.String(), actual)
	}
}

func TestProgram_Run(t *testing.T) {
	p, err := Compile("x = a / b\ny = x % b", nil)
	require.NoError(t, err)

	final, err := p.Run(map[string]int64{"a": 17, "b": 5})
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a": 17, "b": 5, "x": 3, "y": 3}, final)

	_, err = p.Run(map[string]int64{"a": 1})
	require.True(t, errors.Is(err, ErrDivisionByZero))

	p, err = Compile("x = a ** b", nil)
	require.NoError(t, err)
	_, err = p.Run(nil)
	require.True(t, errors.Is(err, ErrUnknownOperator))
}

func TestProgram_Verify(t *testing.T) {
	var source strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&source, "v%d = v%d - v%d\n", i%5, (i+1)%7, (i*3)%6)
		if i%4 == 0 {
			fmt.Fprintf(&source, "v%d = v%d\n", (i+2)%7, i%5)
		}
	}
	mem := map[string]int64{}
	for i := 0; i < 7; i++ {
		mem[fmt.Sprintf("v%d", i)] = int64(i*i - 9)
	}
	for _, policy := range []Policy{PolicyNextUse, PolicyFixedSlot} {
		p, err := Compile(source.String(), NewConfig().WithAllocator(policy))
		require.NoError(t, err)
		require.NoError(t, p.Verify(mem), policy.String())
	}
}

func TestProgram_Assemble(t *testing.T) {
	p, err := Compile(spillSource, nil)
	require.NoError(t, err)
	code, err := p.Assemble()
	require.NoError(t, err)
	require.Equal(t, byte(0xc3), code[len(code)-1])

	p, err = Compile("x = a / b", nil)
	require.NoError(t, err)
	_, err = p.Assemble()
	require.True(t, errors.Is(err, ErrUnsupportedOperator))
}
