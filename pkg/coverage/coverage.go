// Package coverage declares the minimum statement coverage a test run must reach
// and checks it at teardown.
package coverage

import (
	"errors"
	"fmt"
)

// DefaultMinimum is the threshold declared when no option overrides it.
const DefaultMinimum = 100

var (
	ErrInvalidMinimum = errors.New("minimum coverage must be between 0 and 100")
	ErrBelowMinimum   = errors.New("coverage below minimum")
	ErrNotDeclared    = errors.New("minimum coverage was never declared")
)

// Collaborator is the coverage tool the gate declares its threshold to.
type Collaborator interface {
	SetMinimumCoverage(pct int) error
}

// Checker is implemented by collaborators that can verify the threshold themselves.
type Checker interface {
	Check() error
}

// Gate is a declared coverage threshold.
type Gate struct {
	minimum      int
	collaborator Collaborator
}

// Option configures Setup.
type Option func(*Gate)

// WithMinimum overrides DefaultMinimum.
func WithMinimum(pct int) Option {
	return func(g *Gate) { g.minimum = pct }
}

// Setup declares the minimum to c exactly once. Nothing is declared when the
// threshold is out of range.
func Setup(c Collaborator, opts ...Option) (*Gate, error) {
	g := &Gate{minimum: DefaultMinimum, collaborator: c}
	for _, opt := range opts {
		opt(g)
	}
	if err := validate(g.minimum); err != nil {
		return nil, err
	}
	if err := c.SetMinimumCoverage(g.minimum); err != nil {
		return nil, fmt.Errorf("failed to declare minimum coverage: %w", err)
	}
	return g, nil
}

// Minimum returns the declared threshold.
func (g *Gate) Minimum() int { return g.minimum }

// Check delegates to the collaborator when it can verify the threshold.
// Collaborators that enforce it on their own always pass here.
func (g *Gate) Check() error {
	if c, ok := g.collaborator.(Checker); ok {
		return c.Check()
	}
	return nil
}

func validate(pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidMinimum, pct)
	}
	return nil
}

func below(actual float64, minimum int) error {
	if actual+1e-9 < float64(minimum) {
		return fmt.Errorf("%w: %.1f%% < %d%%", ErrBelowMinimum, actual, minimum)
	}
	return nil
}
