// Package exitcodes defines the process exit codes of a test binary.
package exitcodes

// Exit code constants:
//
// * Success (0): every test passed or was disabled
// * TestFailure (1): at least one test failed or errored
// * RuntimeErr (2): the run could not be completed (bad registration or plan,
// broken reporting invariant, unwritable reports)
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
