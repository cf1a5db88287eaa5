package isolation_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// spyTB records what InSubProcess reports instead of failing the real test, so
// failing children can be asserted on. Everything else goes to the real TB.
type spyTB struct {
	testing.TB

	mu     sync.Mutex
	errors []string
	fatals []string
	skips  []string
}

func newSpy(t *testing.T) *spyTB { return &spyTB{TB: t} }

func (s *spyTB) record(dst *[]string, msg string) {
	s.mu.Lock()
	*dst = append(*dst, msg)
	s.mu.Unlock()
}

func (s *spyTB) Error(args ...any) { s.record(&s.errors, strings.TrimSpace(fmt.Sprintln(args...))) }

func (s *spyTB) Errorf(format string, args ...any) {
	s.record(&s.errors, fmt.Sprintf(format, args...))
}

func (s *spyTB) Fatalf(format string, args ...any) {
	s.record(&s.fatals, fmt.Sprintf(format, args...))
}

func (s *spyTB) Skipf(format string, args ...any) {
	s.record(&s.skips, fmt.Sprintf(format, args...))
}

func (s *spyTB) reported() (errs, fatals, skips []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors, s.fatals, s.skips
}
