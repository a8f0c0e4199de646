package tac3

import (
	"fmt"
	"io"

	"github.com/tac3/tac3/internal/buildoptions"
	"github.com/tac3/tac3/internal/regalloc"
)

// Policy selects how registers are chosen for eviction.
type Policy byte

const (
	// PolicyNextUse evicts the variable whose next use is farthest away, and writes results into the register of a
	// dead operand when possible. This is the default.
	PolicyNextUse Policy = iota
	// PolicyFixedSlot always evicts the first evictable register. It is a baseline to compare PolicyNextUse against.
	PolicyFixedSlot
)

// String implements fmt.Stringer. The result is accepted by ParsePolicy.
func (p Policy) String() string {
	switch p {
	case PolicyNextUse:
		return "nextuse"
	case PolicyFixedSlot:
		return "fixed"
	default:
		return fmt.Sprintf("Policy(%d)", p)
	}
}

// ParsePolicy returns the Policy named s, as returned by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "nextuse":
		return PolicyNextUse, nil
	case "fixed":
		return PolicyFixedSlot, nil
	default:
		return 0, fmt.Errorf("invalid allocator %q: must be nextuse or fixed", s)
	}
}

// Config controls compilation, with the default implementation as NewConfig.
//
// Config is immutable: each WithXXX function returns a new instance including the corresponding change.
type Config struct {
	policy   Policy
	validate bool
	trace    io.Writer
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &Config{
	policy:   PolicyNextUse,
	validate: buildoptions.RegAllocValidationEnabled,
}

// clone ensures all fields are copied even if nil.
func (c *Config) clone() *Config {
	return &Config{
		policy:   c.policy,
		validate: c.validate,
		trace:    c.trace,
	}
}

// NewConfig returns a Config using next-use allocation with validation enabled.
func NewConfig() *Config {
	return defaultConfig.clone()
}

// WithAllocator sets the register allocation policy. Defaults to PolicyNextUse.
func (c *Config) WithAllocator(p Policy) *Config {
	ret := c.clone()
	ret.policy = p
	return ret
}

// WithValidation toggles checking the register file invariants after every instruction. Defaults to true.
//
// Note: A violation is a bug in the allocator. It fails Compile with an error instead of emitting wrong code.
func (c *Config) WithValidation(enabled bool) *Config {
	ret := c.clone()
	ret.validate = enabled
	return ret
}

// WithTrace writes one line per generated instruction and per allocation decision to w. Defaults to nil, which
// disables tracing.
//
// Note: w is written to from Compile, so it must not be shared by concurrent calls unless it is safe to do so.
func (c *Config) WithTrace(w io.Writer) *Config {
	ret := c.clone()
	ret.trace = w
	return ret
}

// newAllocator returns a fresh allocator for one block.
func (c *Config) newAllocator() (regalloc.Allocator, error) {
	switch c.policy {
	case PolicyNextUse:
		return regalloc.NewRegisterFile(), nil
	case PolicyFixedSlot:
		return regalloc.NewFixedSlot(), nil
	default:
		return nil, fmt.Errorf("invalid allocator %s", c.policy)
	}
}
