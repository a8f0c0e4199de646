package tac3

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tac3/tac3/internal/regalloc"
)

func TestConfig(t *testing.T) {
	var trace bytes.Buffer
	tests := []struct {
		name     string
		with     func(*Config) *Config
		expected *Config
	}{
		{
			name: "allocator",
			with: func(c *Config) *Config {
				return c.WithAllocator(PolicyFixedSlot)
			},
			expected: &Config{policy: PolicyFixedSlot, validate: true},
		},
		{
			name: "validation",
			with: func(c *Config) *Config {
				return c.WithValidation(false)
			},
			expected: &Config{policy: PolicyNextUse, validate: false},
		},
		{
			name: "trace",
			with: func(c *Config) *Config {
				return c.WithTrace(&trace)
			},
			expected: &Config{policy: PolicyNextUse, validate: true, trace: &trace},
		},
	}
	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			input := NewConfig()
			rc := tc.with(input)
			require.Equal(t, tc.expected, rc)
			// The source wasn't modified
			require.Equal(t, NewConfig(), input)
		})
	}
}

func TestConfig_newAllocator(t *testing.T) {
	a, err := NewConfig().newAllocator()
	require.NoError(t, err)
	require.IsType(t, &regalloc.RegisterFile{}, a)

	a, err = NewConfig().WithAllocator(PolicyFixedSlot).newAllocator()
	require.NoError(t, err)
	require.IsType(t, &regalloc.FixedSlot{}, a)

	// Each call returns a fresh allocator.
	c := NewConfig()
	a1, err := c.newAllocator()
	require.NoError(t, err)
	a2, err := c.newAllocator()
	require.NoError(t, err)
	require.NotSame(t, a1, a2)

	_, err = NewConfig().WithAllocator(Policy(9)).newAllocator()
	require.EqualError(t, err, "invalid allocator Policy(9)")
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{PolicyNextUse, PolicyFixedSlot} {
		actual, err := ParsePolicy(p.String())
		require.NoError(t, err)
		require.Equal(t, p, actual)
	}

	_, err := ParsePolicy("belady")
	require.EqualError(t, err, `invalid allocator "belady": must be nextuse or fixed`)
}
