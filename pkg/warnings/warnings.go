// Package warnings holds the process-wide slot that decides where diagnostic
// warnings from the expectations library go, and a scope that captures them.
package warnings

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/xkilldash9x/expectkit/internal/observability"
	"github.com/xkilldash9x/expectkit/pkg/scope"
)

// Notifier receives warning messages.
type Notifier interface {
	Notify(warning string)
}

// NotifierFunc adapts a plain function. Use Func to get a comparable Notifier.
type NotifierFunc func(warning string)

// Notify calls f(warning).
func (f NotifierFunc) Notify(warning string) { f(warning) }

type funcNotifier struct{ fn func(string) }

func (n *funcNotifier) Notify(warning string) { n.fn(warning) }

// Func wraps fn in a pointer-backed Notifier, so the slot can be compared with ==.
func Func(fn func(warning string)) Notifier { return &funcNotifier{fn: fn} }

// LogNotifier writes warnings through a zap logger at warn level.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a LogNotifier. A nil logger means the global harness logger,
// resolved on every call so it follows re-initialization.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs warning.
func (n *LogNotifier) Notify(warning string) {
	l := n.logger
	if l == nil {
		l = observability.GetLogger().Named("warnings")
	}
	l.Warn(warning)
}

// Default is the notifier installed at startup.
var Default Notifier = NewLogNotifier(nil)

var (
	mu      sync.RWMutex
	current = Default
)

// Current returns the installed notifier.
func Current() Notifier {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetNotifier installs n and returns the notifier it replaced. A nil n installs Default.
func SetNotifier(n Notifier) Notifier {
	if n == nil {
		n = Default
	}
	mu.Lock()
	defer mu.Unlock()
	prev := current
	current = n
	return prev
}

// Warn sends message to the installed notifier.
func Warn(message string) {
	Current().Notify(message)
}

// Warnf formats and sends a message to the installed notifier.
func Warnf(format string, args ...any) {
	Warn(fmt.Sprintf(format, args...))
}

// slotKey names the single slot exposed by slotStore.
type slotKey struct{}

// slotStore exposes the notifier slot to the scope primitive.
type slotStore struct{}

func (slotStore) Lookup(slotKey) (Notifier, bool, error) { return Current(), true, nil }

func (slotStore) Store(_ slotKey, n Notifier) error {
	SetNotifier(n)
	return nil
}

func (slotStore) Delete(slotKey) error {
	SetNotifier(Default)
	return nil
}

// Collector is a Notifier that keeps every message in order.
type Collector struct {
	mu       sync.Mutex
	messages []string
}

// Notify appends warning.
func (c *Collector) Notify(warning string) {
	c.mu.Lock()
	c.messages = append(c.messages, warning)
	c.mu.Unlock()
}

// Messages returns a copy of the collected messages.
func (c *Collector) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}

// Capture runs fn with a collecting notifier installed and returns the warnings fn
// emitted, in order. The previous notifier is reinstalled on every exit path. When fn
// fails the collected warnings are dropped and only the error is returned.
func Capture(fn func() error) ([]string, error) {
	collector := &Collector{}
	err := scope.Override[slotKey, Notifier](slotStore{}, map[slotKey]Notifier{{}: collector}, fn)
	if err != nil {
		return nil, err
	}
	return collector.Messages(), nil
}

// CaptureT installs a collecting notifier until tb finishes and returns it.
func CaptureT(tb testing.TB) *Collector {
	tb.Helper()
	collector := &Collector{}
	scope.Cleanup[slotKey, Notifier](tb, slotStore{}, map[slotKey]Notifier{{}: collector})
	return collector
}
