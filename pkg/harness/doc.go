// Package harness wires the scope primitives into test suites.
//
// A Suite runs Cases through a middleware pipeline in a seeded random order.
// Case metadata switches middleware on: a Case carrying Configuration runs with
// those registry values applied and the previous ones restored afterwards.
//
// Main is meant for TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(harness.Main(m))
//	}
package harness
