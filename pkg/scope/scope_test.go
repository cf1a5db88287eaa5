package scope_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/expectkit/pkg/scope"
)

// faultyStore wraps a MapStore and fails on demand.
type faultyStore struct {
	*scope.MapStore[string, int]
	failLookup string
	failStore  string
	failDelete string
	stores     []string
}

func (f *faultyStore) Lookup(key string) (int, bool, error) {
	if key == f.failLookup {
		return 0, false, errors.New("lookup boom")
	}
	return f.MapStore.Lookup(key)
}

func (f *faultyStore) Store(key string, value int) error {
	f.stores = append(f.stores, key)
	if key == f.failStore {
		return errors.New("store boom")
	}
	return f.MapStore.Store(key, value)
}

func (f *faultyStore) Delete(key string) error {
	if key == f.failDelete {
		return errors.New("delete boom")
	}
	return f.MapStore.Delete(key)
}

func newStore() *scope.MapStore[string, int] {
	return scope.NewMapStore(map[string]int{"a": 1, "b": 2})
}

func TestOverride(t *testing.T) {
	t.Run("applies for the duration of fn and restores after", func(t *testing.T) {
		store := newStore()
		err := scope.Override(store, map[string]int{"a": 10, "c": 30}, func() error {
			v, ok, _ := store.Lookup("a")
			assert.True(t, ok)
			assert.Equal(t, 10, v)
			v, ok, _ = store.Lookup("c")
			assert.True(t, ok)
			assert.Equal(t, 30, v)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 1, "b": 2}, store.Snapshot())
	})

	t.Run("restores and returns the unit of work error unchanged", func(t *testing.T) {
		store := newStore()
		boom := errors.New("expectation not met")
		err := scope.Override(store, map[string]int{"b": 20}, func() error { return boom })
		assert.Same(t, boom, err)
		assert.Equal(t, map[string]int{"a": 1, "b": 2}, store.Snapshot())
	})

	t.Run("restores before re-raising a panic", func(t *testing.T) {
		store := newStore()
		assert.PanicsWithValue(t, "kaboom", func() {
			_ = scope.Override(store, map[string]int{"a": 99}, func() error { panic("kaboom") })
		})
		assert.Equal(t, map[string]int{"a": 1, "b": 2}, store.Snapshot())
	})

	t.Run("only keys in the mapping are touched", func(t *testing.T) {
		store := newStore()
		err := scope.Override(store, map[string]int{"a": 5}, func() error {
			return store.Store("b", 500)
		})
		require.NoError(t, err)
		v, _, _ := store.Lookup("b")
		assert.Equal(t, 500, v, "keys outside the override are not part of the snapshot")
	})

	t.Run("repeated scopes leave the same end state", func(t *testing.T) {
		store := newStore()
		run := func() {
			require.NoError(t, scope.Override(store, map[string]int{"a": 7, "z": 8}, func() error { return nil }))
		}
		run()
		once := store.Snapshot()
		run()
		assert.Equal(t, once, store.Snapshot())
		assert.Equal(t, map[string]int{"a": 1, "b": 2}, once)
	})

	t.Run("restore failure is reported distinctly", func(t *testing.T) {
		store := &faultyStore{MapStore: newStore(), failDelete: "new"}
		boom := errors.New("work failed")
		err := scope.Override[string, int](store, map[string]int{"new": 1}, func() error { return boom })
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		var rerr *scope.RestoreError
		require.ErrorAs(t, err, &rerr)
		require.Len(t, rerr.Failures, 1)
		assert.Equal(t, "new", rerr.Failures[0].Key)
		assert.Contains(t, err.Error(), "delete boom")
	})

	t.Run("snapshot failure prevents any mutation", func(t *testing.T) {
		store := &faultyStore{MapStore: newStore(), failLookup: "bad"}
		called := false
		err := scope.Override[string, int](store, map[string]int{"a": 3, "bad": 4}, func() error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)
		assert.Empty(t, store.stores)
	})

	t.Run("apply failure rolls back what was applied", func(t *testing.T) {
		store := &faultyStore{MapStore: newStore(), failStore: "b"}
		err := scope.Override[string, int](store, map[string]int{"a": 3, "b": 4}, func() error {
			t.Fatal("unit of work must not run")
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scope: apply b")
		v, _, _ := store.MapStore.Lookup("a")
		assert.Equal(t, 1, v)
	})
}

func TestAcquireRelease(t *testing.T) {
	store := newStore()
	g, err := scope.Acquire[string, int](store, map[string]int{"a": 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.Keys())

	require.NoError(t, store.Store("a", 200))
	require.NoError(t, g.Release())
	v, _, _ := store.Lookup("a")
	assert.Equal(t, 1, v)

	// Second release must not clobber later writes.
	require.NoError(t, store.Store("a", 300))
	require.NoError(t, g.Release())
	v, _, _ = store.Lookup("a")
	assert.Equal(t, 300, v)
}

func TestCleanup(t *testing.T) {
	store := newStore()
	t.Run("override in subtest", func(t *testing.T) {
		scope.Cleanup[string, int](t, store, map[string]int{"a": 11, "q": 12})
		v, _, _ := store.Lookup("a")
		assert.Equal(t, 11, v)
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, store.Snapshot())
}

func TestRecord(t *testing.T) {
	store := newStore()
	var rec scope.Record[string, int]
	require.NoError(t, rec.Capture(store, "a"))
	require.NoError(t, store.Store("a", 50))
	require.NoError(t, rec.Capture(store, "a"), "second capture is ignored")
	require.NoError(t, rec.Capture(store, "missing"))

	assert.Equal(t, 2, rec.Len())
	assert.Equal(t, []string{"a", "missing"}, rec.Keys())

	prior, present, ok := rec.Prior("a")
	assert.True(t, ok)
	assert.True(t, present)
	assert.Equal(t, 1, prior)

	_, present, ok = rec.Prior("missing")
	assert.True(t, ok)
	assert.False(t, present)

	require.NoError(t, store.Store("missing", 9))
	require.NoError(t, rec.Restore(store))
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, store.Snapshot())
}
