// Package isolation runs a unit of test work in a fresh copy of the test binary
// so that process-global side effects, such as a loaded integration or a mutated
// package variable, never reach the parent.
//
// The parent re-executes os.Args[0] restricted to the calling test and hands the
// child the identity of the unit through environment variables. The child runs
// only that unit, writes an Outcome file and exits. No other state crosses the
// process boundary.
package isolation
