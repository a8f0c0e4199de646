// Package buildoptions holds compile-time switches for diagnostics.
//
// Instead of scattering them over the allocator and the code generator, they live here so that we can quickly
// iterate on debugging without spending "where do we have debug logging?" time.
package buildoptions

// ----- Debug logging -----
// These consts must be disabled by default. Enable them only when debugging.

const (
	// RegAllocLoggingEnabled prints every allocation decision to stdout.
	RegAllocLoggingEnabled = false
	// PrintNextUseTable prints the next-use table of every block before code generation.
	PrintNextUseTable = false
)

// ----- Validations -----
// These consts must be enabled by default until the allocator has been fuzzed for long enough.

const (
	// RegAllocValidationEnabled makes the code generator check the register file invariants after every
	// instruction unless the caller overrides it.
	RegAllocValidationEnabled = true
)
