package isolation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoOutcome is reported when the child exited without writing an outcome.
	ErrNoOutcome = errors.New("isolated unit produced no outcome")
	// ErrUnitFailed is reported when the child recorded a failure or a panic.
	ErrUnitFailed = errors.New("isolated unit failed")
	// ErrExitStatus is reported when the child passed but exited non-zero.
	ErrExitStatus = errors.New("isolated unit exited with non-zero status")
	// ErrTimeout is reported when the child did not finish within the bridge timeout.
	ErrTimeout = errors.New("isolated unit timed out")
)

// ChildError describes why an isolated unit did not pass.
type ChildError struct {
	Kind    error
	Session *Session
}

func (e *ChildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %s (session %s, exit %d)", e.Kind, e.Session.Unit, e.Session.ID, e.Session.ExitCode)
	if o := e.Session.Outcome; o != nil {
		for _, f := range o.Failures {
			b.WriteString("\n    ")
			b.WriteString(f)
		}
		if o.Panic != "" {
			fmt.Fprintf(&b, "\n    panic: %s\n%s", o.Panic, o.Stack)
		}
	}
	if out := strings.TrimSpace(e.Session.Stdout); out != "" && e.Session.Outcome == nil {
		fmt.Fprintf(&b, "\nchild output:\n%s", out)
	}
	return b.String()
}

func (e *ChildError) Unwrap() error { return e.Kind }
