// Package scope implements the snapshot, mutate, restore discipline that every
// expectkit override builds on.
//
// A Store exposes one kind of global state by key. Acquire records the prior value
// of every key it is about to touch (including "absent"), applies the new values and
// hands back a Guard whose Release writes the recorded values back. Override and
// Cleanup wrap that in constructs that always release: a deferred call for a block
// of code, or testing.TB.Cleanup for the remainder of a test.
//
// Typical use:
//
//	err := scope.Override(store, map[string]int{"retries": 0}, func() error {
//	    return exercise()
//	})
//
// Restore failures are reported as *RestoreError so callers can tell them apart from
// failures of the wrapped code.
package scope
