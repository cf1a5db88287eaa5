package isolation

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

var (
	defaultBridge = NewBridge()

	ordinalsMu sync.Mutex
	ordinals   = map[string]int{}

	// unitRunning is set in a child while the unit it was spawned for runs.
	unitRunning atomic.Bool
)

// Default returns the process-wide bridge used by InSubProcess.
func Default() *Bridge { return defaultBridge }

// IsChild reports whether this process is an isolation child.
func IsChild() bool { return os.Getenv(EnvUnit) != "" }

// nextUnit numbers isolated calls within one test so the child can find the
// call it was spawned for. Numbering restarts for every run of the test.
func nextUnit(tb testing.TB) string {
	name := tb.Name()
	ordinalsMu.Lock()
	n, seen := ordinals[name]
	ordinals[name] = n + 1
	ordinalsMu.Unlock()
	if !seen {
		tb.Cleanup(func() {
			ordinalsMu.Lock()
			delete(ordinals, name)
			ordinalsMu.Unlock()
		})
	}
	return name + "#" + strconv.Itoa(n+1)
}

// InSubProcess runs fn in a child copy of the test binary and reports the
// child's verdict on tb. Nothing fn does to process state is visible afterwards.
//
// Inside the child the rest of the calling test is skipped once fn returns, so
// code after InSubProcess only ever runs in the parent. A call nested inside an
// isolated unit runs inline, since that process is already disposable.
func InSubProcess(tb testing.TB, fn func(tb testing.TB)) {
	tb.Helper()
	if unitRunning.Load() {
		fn(tb)
		return
	}
	unit := nextUnit(tb)

	if current := os.Getenv(EnvUnit); current != "" {
		if current != unit {
			return
		}
		runChild(tb, unit, fn)
		tb.SkipNow()
		return
	}

	sess, err := defaultBridge.Run(context.Background(), tb.Name(), unit)
	if sess != nil && len(sess.Stderr) > 0 {
		tb.Logf("isolated unit %s stderr:\n%s", unit, strings.Join(sess.Stderr, "\n"))
	}
	if err != nil {
		tb.Fatalf("isolation bridge: %v", err)
		return
	}
	if o := sess.Outcome; o != nil {
		for _, line := range o.Logs {
			tb.Log(line)
		}
	}
	if err := sess.Err(); err != nil {
		tb.Error(err)
		return
	}
	if sess.Outcome.Skipped {
		tb.Skipf("isolated unit %s skipped", unit)
	}
}

// WithLoaded loads a dependency that must not leak into the parent, with its
// stderr chatter discarded, and then runs verify against it. Both steps run in
// the child.
func WithLoaded(tb testing.TB, load func() error, verify func(tb testing.TB)) {
	tb.Helper()
	InSubProcess(tb, func(tb testing.TB) {
		if err := WithIsolatedStderr(load); err != nil {
			tb.Fatalf("failed to load isolated dependency: %v", err)
			return
		}
		verify(tb)
	})
}

func runChild(tb testing.TB, unit string, fn func(tb testing.TB)) {
	rec := &recorder{TB: tb}
	outcome := Outcome{Session: os.Getenv(EnvSession), Unit: unit}
	unitRunning.Store(true)
	defer func() {
		unitRunning.Store(false)
		r := recover()
		if r != nil {
			outcome.Panic = fmt.Sprint(r)
			outcome.Stack = string(debug.Stack())
		}
		outcome.Failures, outcome.Logs, outcome.Skipped = rec.snapshot()
		outcome.Passed = r == nil && !rec.Failed()
		if err := writeOutcome(os.Getenv(EnvOutcome), outcome); err != nil {
			tb.Errorf("isolation child: %v", err)
		}
		if r != nil {
			tb.Errorf("isolated unit panicked: %v", r)
		}
	}()
	fn(rec)
}

// recorder wraps the child's TB and keeps a copy of everything reported so it can
// be sent to the parent.
type recorder struct {
	testing.TB

	mu       sync.Mutex
	failed   bool
	skipped  bool
	failures []string
	logs     []string
}

func (r *recorder) fail(msg string) {
	r.mu.Lock()
	r.failed = true
	if msg != "" {
		r.failures = append(r.failures, msg)
	}
	r.mu.Unlock()
}

func (r *recorder) snapshot() (failures, logs []string, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...), append([]string(nil), r.logs...), r.skipped
}

func (r *recorder) Failed() bool {
	r.mu.Lock()
	failed := r.failed
	r.mu.Unlock()
	return failed || r.TB.Failed()
}

func (r *recorder) Fail() {
	r.fail("")
	r.TB.Fail()
}

func (r *recorder) FailNow() {
	r.fail("")
	r.TB.FailNow()
}

func (r *recorder) Error(args ...any) {
	r.TB.Helper()
	r.fail(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
	r.TB.Error(args...)
}

func (r *recorder) Errorf(format string, args ...any) {
	r.TB.Helper()
	r.fail(fmt.Sprintf(format, args...))
	r.TB.Errorf(format, args...)
}

func (r *recorder) Fatal(args ...any) {
	r.TB.Helper()
	r.fail(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
	r.TB.Fatal(args...)
}

func (r *recorder) Fatalf(format string, args ...any) {
	r.TB.Helper()
	r.fail(fmt.Sprintf(format, args...))
	r.TB.Fatalf(format, args...)
}

func (r *recorder) Log(args ...any) {
	r.TB.Helper()
	r.mu.Lock()
	r.logs = append(r.logs, strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
	r.mu.Unlock()
	r.TB.Log(args...)
}

func (r *recorder) Logf(format string, args ...any) {
	r.TB.Helper()
	r.mu.Lock()
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
	r.mu.Unlock()
	r.TB.Logf(format, args...)
}

func (r *recorder) markSkipped() {
	r.mu.Lock()
	r.skipped = true
	r.mu.Unlock()
}

func (r *recorder) Skip(args ...any) {
	r.TB.Helper()
	r.markSkipped()
	r.TB.Skip(args...)
}

func (r *recorder) Skipf(format string, args ...any) {
	r.TB.Helper()
	r.markSkipped()
	r.TB.Skipf(format, args...)
}

func (r *recorder) SkipNow() {
	r.markSkipped()
	r.TB.SkipNow()
}

func (r *recorder) Skipped() bool {
	r.mu.Lock()
	skipped := r.skipped
	r.mu.Unlock()
	return skipped || r.TB.Skipped()
}
