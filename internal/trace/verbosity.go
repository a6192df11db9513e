package trace

import (
	"fmt"
	"strings"
)

// Verbosity selects how much of a record is rendered.
type Verbosity uint8

const (
	// Terse renders the module-relative offset only.
	Terse Verbosity = iota + 1
	// Annotated renders module name and offset.
	Annotated
	// Full renders a timestamped header and the block's disassembly.
	Full
)

// String returns the string representation of Verbosity.
func (v Verbosity) String() string {
	switch v {
	case Terse:
		return "terse"
	case Annotated:
		return "annotated"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// ParseVerbosity converts a string to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "terse":
		return Terse, nil
	case "annotated":
		return Annotated, nil
	case "full":
		return Full, nil
	default:
		return 0, fmt.Errorf("invalid verbosity: %q (expected: terse|annotated|full)", s)
	}
}

// NeedsBody reports whether records at this verbosity carry disassembly.
func (v Verbosity) NeedsBody() bool {
	return v == Full
}
