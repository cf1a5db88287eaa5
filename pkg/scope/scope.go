package scope

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/xkilldash9x/expectkit/internal/observability"
)

// Store is a keyed view over some piece of global state.
type Store[K comparable, V any] interface {
	// Lookup returns the current value and whether the key is present.
	Lookup(key K) (V, bool, error)
	// Store sets key to value.
	Store(key K, value V) error
	// Delete removes key. Stores with no notion of absence may reset it instead.
	Delete(key K) error
}

type entry[K comparable, V any] struct {
	key     K
	prior   V
	present bool
}

// Record is the ordered set of (key, prior value) pairs captured for one scope.
type Record[K comparable, V any] struct {
	entries []entry[K, V]
	index   map[K]int
}

// Capture remembers the current value of key. Only the first capture of a key counts,
// so the recorded value is always the one from before the first mutation.
func (r *Record[K, V]) Capture(store Store[K, V], key K) error {
	if r.index == nil {
		r.index = make(map[K]int)
	}
	if _, seen := r.index[key]; seen {
		return nil
	}
	prior, present, err := store.Lookup(key)
	if err != nil {
		return fmt.Errorf("scope: snapshot %v: %w", key, err)
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, entry[K, V]{key: key, prior: prior, present: present})
	return nil
}

// Len returns the number of captured keys.
func (r *Record[K, V]) Len() int { return len(r.entries) }

// Keys returns the captured keys in capture order.
func (r *Record[K, V]) Keys() []K {
	keys := make([]K, 0, len(r.entries))
	for _, e := range r.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Prior returns the recorded value for key.
func (r *Record[K, V]) Prior(key K) (value V, present bool, ok bool) {
	i, ok := r.index[key]
	if !ok {
		return value, false, false
	}
	e := r.entries[i]
	return e.prior, e.present, true
}

// Restore writes every recorded value back to store. Every key is attempted even
// when some fail; the failures are collected into a *RestoreError.
func (r *Record[K, V]) Restore(store Store[K, V]) error {
	var failures []KeyFailure
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		var err error
		if e.present {
			err = store.Store(e.key, e.prior)
		} else {
			err = store.Delete(e.key)
		}
		if err != nil {
			failures = append(failures, KeyFailure{Key: fmt.Sprint(e.key), Err: err})
		}
	}
	if len(failures) > 0 {
		return &RestoreError{Failures: failures}
	}
	return nil
}

// Guard owns the restore action of an acquired scope.
type Guard[K comparable, V any] struct {
	store    Store[K, V]
	record   Record[K, V]
	mu       sync.Mutex
	released bool
}

// Acquire snapshots every key in overrides, then applies them. If applying fails,
// whatever was already applied is restored before the error is returned.
func Acquire[K comparable, V any](store Store[K, V], overrides map[K]V) (*Guard[K, V], error) {
	g := &Guard[K, V]{store: store}
	for key := range overrides {
		if err := g.record.Capture(store, key); err != nil {
			return nil, err
		}
	}
	for key, value := range overrides {
		if err := store.Store(key, value); err != nil {
			applyErr := fmt.Errorf("scope: apply %v: %w", key, err)
			if rerr := g.Release(); rerr != nil {
				return nil, errors.Join(applyErr, rerr)
			}
			return nil, applyErr
		}
	}
	return g, nil
}

// Keys returns the keys this guard will restore.
func (g *Guard[K, V]) Keys() []K { return g.record.Keys() }

// Release restores the snapshot. Calling it more than once is a no-op.
func (g *Guard[K, V]) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil
	}
	g.released = true
	return g.record.Restore(g.store)
}

// Override applies overrides for the duration of fn. The snapshot is restored on
// every exit path, including a panic in fn, which is re-raised afterwards.
// fn's error is returned unchanged; a restore failure is joined to it.
func Override[K comparable, V any](store Store[K, V], overrides map[K]V, fn func() error) (err error) {
	g, err := Acquire(store, overrides)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if rerr := g.Release(); rerr != nil {
				observability.GetLogger().Named("scope").Error("Restore failed while unwinding a panic",
					zap.Any("panic", r), zap.Error(rerr))
			}
			panic(r)
		}
		if rerr := g.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn()
}

// Cleanup applies overrides now and restores them when tb and its subtests finish.
// A failure to apply stops the test; a failure to restore marks it failed.
func Cleanup[K comparable, V any](tb testing.TB, store Store[K, V], overrides map[K]V) *Guard[K, V] {
	tb.Helper()
	g, err := Acquire(store, overrides)
	if err != nil {
		tb.Fatalf("failed to apply overrides: %v", err)
		return nil
	}
	tb.Cleanup(func() {
		if err := g.Release(); err != nil {
			tb.Errorf("failed to restore overrides: %v", err)
		}
	})
	return g
}
