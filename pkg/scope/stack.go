package scope

import (
	"errors"
	"sync"
)

// Releaser is anything that can undo an applied scope.
type Releaser interface {
	Release() error
}

// Stack nests scopes. Releases happen last in, first out, so when two scopes
// override the same key the outer snapshot is the one that survives.
type Stack struct {
	mu     sync.Mutex
	frames []Releaser
}

// Push adds r as the innermost scope.
func (s *Stack) Push(r Releaser) {
	s.mu.Lock()
	s.frames = append(s.frames, r)
	s.mu.Unlock()
}

// Len returns the number of open scopes.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Pop releases the innermost scope. Popping an empty stack does nothing.
func (s *Stack) Pop() error {
	s.mu.Lock()
	if len(s.frames) == 0 {
		s.mu.Unlock()
		return nil
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.mu.Unlock()
	return top.Release()
}

// Unwind releases every open scope, innermost first. A failing release does not stop
// the ones beneath it.
func (s *Stack) Unwind() error {
	var errs []error
	for s.Len() > 0 {
		if err := s.Pop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
