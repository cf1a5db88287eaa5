package scope

import "testing"

// varKey names the single slot of a varStore.
type varKey struct{}

// varStore exposes a package-level variable as a one-slot Store.
type varStore[T any] struct {
	target *T
	zero   T
}

func (s varStore[T]) Lookup(varKey) (T, bool, error) { return *s.target, true, nil }

func (s varStore[T]) Store(_ varKey, v T) error {
	*s.target = v
	return nil
}

func (s varStore[T]) Delete(varKey) error {
	*s.target = s.zero
	return nil
}

// Swap sets *target to replacement for the duration of fn and puts the original
// back afterwards, whatever fn does.
func Swap[T any](target *T, replacement T, fn func() error) error {
	return Override[varKey, T](varStore[T]{target: target}, map[varKey]T{{}: replacement}, fn)
}

// SwapT sets *target to replacement until tb finishes.
func SwapT[T any](tb testing.TB, target *T, replacement T) {
	tb.Helper()
	Cleanup[varKey, T](tb, varStore[T]{target: target}, map[varKey]T{{}: replacement})
}
