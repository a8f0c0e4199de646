package tac

import (
	"bufio"
	"fmt"
	"strings"
)

// ParseError is returned by Parse for malformed input.
type ParseError struct {
	// Line is 1-based.
	Line int
	Msg  string
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Msg)
}

// Parse reads one instruction per line in the form `dst = src` or `dst = src1 op src2`.
// Blank lines and lines starting with '#' are skipped.
func Parse(source string) ([]Instruction, error) {
	var ret []Instruction
	sc := bufio.NewScanner(strings.NewReader(source))
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		instr, msg := parseLine(strings.Fields(text))
		if msg != "" {
			return nil, &ParseError{Line: line, Msg: msg}
		}
		ret = append(ret, instr)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func parseLine(fields []string) (Instruction, string) {
	if len(fields) < 3 || fields[1] != "=" {
		return nil, fmt.Sprintf("expected `dst = ...` but got %q", strings.Join(fields, " "))
	}
	for _, i := range []int{0, 2} {
		if !IsVariableName(fields[i]) {
			return nil, fmt.Sprintf("invalid variable name %q", fields[i])
		}
	}
	switch len(fields) {
	case 3:
		return &Move{Dst: Variable(fields[0]), Src: Variable(fields[2])}, ""
	case 5:
		// The operator is an uninterpreted token, so word spellings such as `mul` are accepted too.
		if !IsVariableName(fields[4]) {
			return nil, fmt.Sprintf("invalid variable name %q", fields[4])
		}
		return &BinOp{Dst: Variable(fields[0]), Src1: Variable(fields[2]), Op: fields[3], Src2: Variable(fields[4])}, ""
	default:
		return nil, fmt.Sprintf("expected 3 or 5 tokens but got %d", len(fields))
	}
}

// IsVariableName returns true if s matches [A-Za-z_][A-Za-z0-9_]*.
func IsVariableName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && '0' <= c && c <= '9':
		default:
			return false
		}
	}
	return true
}

// Format renders the block in the syntax accepted by Parse.
func Format(block []Instruction) string {
	var b strings.Builder
	for _, instr := range block {
		b.WriteString(instr.String())
		b.WriteByte('\n')
	}
	return b.String()
}
