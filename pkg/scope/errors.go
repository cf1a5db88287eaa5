package scope

import (
	"fmt"
	"strings"
)

// KeyFailure is one key that could not be put back.
type KeyFailure struct {
	Key string
	Err error
}

// RestoreError reports that a snapshot could not be fully restored. It is a harness
// failure, separate from any failure of the code that ran inside the scope.
type RestoreError struct {
	Failures []KeyFailure
	// Diff optionally describes the state that differs from the snapshot.
	Diff string
}

func (e *RestoreError) Error() string {
	var b strings.Builder
	b.WriteString("scope: restore failed")
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Key, f.Err)
	}
	if e.Diff != "" {
		b.WriteString("\n")
		b.WriteString(e.Diff)
	}
	return b.String()
}

// Unwrap exposes the per-key errors to errors.Is and errors.As.
func (e *RestoreError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
