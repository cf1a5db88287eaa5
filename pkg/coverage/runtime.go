package coverage

import (
	"sync"
	"testing"
)

// RuntimeCollaborator checks the coverage the running test binary reports
// through testing.Coverage. It only has an opinion when the binary was built
// with -cover.
type RuntimeCollaborator struct {
	mu       sync.Mutex
	minimum  int
	declared bool

	// overridable in tests
	coverage func() float64
	mode     func() string
}

func NewRuntimeCollaborator() *RuntimeCollaborator {
	return &RuntimeCollaborator{coverage: testing.Coverage, mode: testing.CoverMode}
}

func (r *RuntimeCollaborator) SetMinimumCoverage(pct int) error {
	if err := validate(pct); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minimum, r.declared = pct, true
	return nil
}

// Percent returns the current statement coverage, 0 to 100.
func (r *RuntimeCollaborator) Percent() float64 { return r.coverage() * 100 }

// Enabled reports whether the binary collects coverage.
func (r *RuntimeCollaborator) Enabled() bool { return r.mode() != "" }

func (r *RuntimeCollaborator) Check() error {
	r.mu.Lock()
	minimum, declared := r.minimum, r.declared
	r.mu.Unlock()
	if !declared {
		return ErrNotDeclared
	}
	if !r.Enabled() {
		return nil
	}
	return below(r.Percent(), minimum)
}
