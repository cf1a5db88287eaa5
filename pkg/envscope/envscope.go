// Package envscope overrides process environment variables for a bounded scope.
//
// Unlike a per-key override, the whole environment table is captured on entry and
// put back on exit. Code running inside the scope may set or unset variables other
// than the ones requested (directly or through libraries it calls) and those
// changes are rolled back too.
package envscope

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/xkilldash9x/expectkit/pkg/scope"
)

// Value is the desired state of one variable: set to a string, or unset.
type Value struct {
	s     string
	unset bool
}

// Set returns a Value that sets the variable to s.
func Set(s string) Value { return Value{s: s} }

// Unset returns a Value that removes the variable.
func Unset() Value { return Value{unset: true} }

// IsUnset reports whether v removes the variable.
func (v Value) IsUnset() bool { return v.unset }

// String returns the value to set, or "" for Unset.
func (v Value) String() string { return v.s }

// Vars builds a set-only override map from plain strings.
func Vars(kv map[string]string) map[string]Value {
	out := make(map[string]Value, len(kv))
	for k, v := range kv {
		out[k] = Set(v)
	}
	return out
}

// Table is a copy of the environment keyed by variable name.
type Table map[string]string

// Snapshot captures the current environment.
func Snapshot() Table {
	env := os.Environ()
	t := make(Table, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			// Windows exposes per-drive entries such as "=C:=C:\"; they are not ours to manage.
			continue
		}
		t[k] = v
	}
	return t
}

// With merges overrides into t and returns the resulting table. t is not modified.
func (t Table) With(overrides map[string]Value) Table {
	out := maps.Clone(t)
	if out == nil {
		out = Table{}
	}
	for k, v := range overrides {
		if v.unset {
			delete(out, k)
			continue
		}
		out[k] = v.s
	}
	return out
}

// Diff describes how the live environment differs from t, or "" when it matches.
func (t Table) Diff() string {
	return cmp.Diff(map[string]string(t), map[string]string(Snapshot()), cmpopts.EquateEmpty())
}

// Restore makes the live environment exactly equal to t: variables missing from t
// are unset and every variable in t is set to its recorded value.
func Restore(t Table) error {
	var errs []error
	current := Snapshot()
	for _, k := range slices.Sorted(maps.Keys(current)) {
		if _, keep := t[k]; keep {
			continue
		}
		if err := os.Unsetenv(k); err != nil {
			errs = append(errs, fmt.Errorf("unset %s: %w", k, err))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(t)) {
		if cur, ok := current[k]; ok && cur == t[k] {
			continue
		}
		if err := os.Setenv(k, t[k]); err != nil {
			errs = append(errs, fmt.Errorf("set %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// tableKey is the only key tableStore knows: the environment as a whole.
type tableKey struct{}

// tableStore exposes the whole environment as a single scope slot.
type tableStore struct{}

func (tableStore) Lookup(tableKey) (Table, bool, error) { return Snapshot(), true, nil }

func (tableStore) Store(_ tableKey, t Table) error {
	if err := Restore(t); err != nil {
		return err
	}
	if diff := t.Diff(); diff != "" {
		return &scope.RestoreError{
			Failures: []scope.KeyFailure{{Key: "environment", Err: errors.New("environment differs after restore")}},
			Diff:     diff,
		}
	}
	return nil
}

func (tableStore) Delete(tableKey) error { return Restore(Table{}) }

// With runs fn with the given overrides applied and restores the entire environment
// table afterwards, on every exit path.
func With(vars map[string]Value, fn func() error) error {
	before := Snapshot()
	return scope.Override[tableKey, Table](tableStore{}, map[tableKey]Table{{}: before.With(vars)}, fn)
}

// Setenv applies vars for the rest of tb and restores the entire environment table
// when tb finishes. Like testing.T.Setenv it must not be used in parallel tests.
func Setenv(tb testing.TB, vars map[string]Value) {
	tb.Helper()
	before := Snapshot()
	scope.Cleanup[tableKey, Table](tb, tableStore{}, map[tableKey]Table{{}: before.With(vars)})
}
