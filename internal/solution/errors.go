package solution

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvariant is the cause of every InvariantError.
var ErrInvariant = errors.New("solution invariant violated")

// InvariantError reports a logic defect in a scheduler: an overlapping
// allocation, a task placed twice, or an EST query that depends on a task
// nobody has placed yet. Solution methods panic with it; scheduler entry
// points turn it back into an error with Recover.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return ErrInvariant.Error() + ": " + e.Reason
}

// Cause lets errors.Cause reach ErrInvariant.
func (e *InvariantError) Cause() error { return ErrInvariant }

// Unwrap lets errors.Is match ErrInvariant.
func (e *InvariantError) Unwrap() error { return ErrInvariant }

func invariantf(format string, args ...interface{}) {
	panic(&InvariantError{Reason: fmt.Sprintf(format, args...)})
}

// Recover stores a panicking *InvariantError in *err. Any other panic is
// re-raised. It must be called directly by defer:
//
//	defer solution.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InvariantError); ok {
		*err = ie
		return
	}
	panic(r)
}
