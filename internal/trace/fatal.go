package trace

import (
	"errors"
	"fmt"

	"bbtrace/internal/host"
)

// FatalError reports a condition that ends the run: the trace can no longer
// be written completely, so the tracer stops instead of dropping records.
type FatalError struct {
	Op   string
	Addr host.Addr
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Op, e.Addr, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal panics with a *FatalError.
func Fatal(op string, addr host.Addr, err error) {
	panic(&FatalError{Op: op, Addr: addr, Err: err})
}

// AsFatal extracts a *FatalError from a recovered panic value.
func AsFatal(r any) (*FatalError, bool) {
	err, ok := r.(error)
	if !ok {
		return nil, false
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
