package harness

import (
	"fmt"
	"sort"
	"testing"

	"github.com/xkilldash9x/expectkit/pkg/scope"
	"github.com/xkilldash9x/expectkit/pkg/settings"
)

// WithConfiguration applies values to reg before the case body and writes the
// previous values back when it ends, whether it passed, failed or panicked. Only
// the keys in values are touched.
func WithConfiguration(reg *settings.Registry, values map[string]any) Middleware {
	return func(next Body) Body {
		return func(t *testing.T) {
			t.Helper()
			if err := checkKeys(reg, values); err != nil {
				t.Fatalf("configuration scope: %v", err)
				return
			}
			guard, err := scope.Acquire(reg.Store(), values)
			if err != nil {
				t.Fatalf("configuration scope: %v", err)
				return
			}
			defer func() {
				if err := guard.Release(); err != nil {
					t.Errorf("configuration scope: %v", err)
				}
			}()
			next(t)
		}
	}
}

// Configure applies values to reg until tb finishes.
func Configure(tb testing.TB, reg *settings.Registry, values map[string]any) {
	tb.Helper()
	if err := checkKeys(reg, values); err != nil {
		tb.Fatalf("configuration scope: %v", err)
		return
	}
	scope.Cleanup(tb, reg.Store(), values)
}

// RestoreAfterGroup records key once and puts it back when tb, the group, and
// all of its subtests finish. Cases inside the group are free to change it.
func RestoreAfterGroup(tb testing.TB, reg *settings.Registry, key string) {
	tb.Helper()
	store := reg.Store()
	var rec scope.Record[string, any]
	if err := rec.Capture(store, key); err != nil {
		tb.Fatalf("group restore of %q: %v", key, err)
		return
	}
	tb.Cleanup(func() {
		if err := rec.Restore(store); err != nil {
			tb.Errorf("group restore of %q: %v", key, err)
		}
	})
}

// checkKeys rejects the whole map before anything is written.
func checkKeys(reg *settings.Registry, values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !reg.Has(k) {
			return fmt.Errorf("%w: %q", settings.ErrUnknownKey, k)
		}
	}
	return nil
}
