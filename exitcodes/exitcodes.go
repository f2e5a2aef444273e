// Package exitcodes defines the standard exit codes used by pkg-acceptor.
package exitcodes

// Exit code constants used by pkg-acceptor:
//
// * Success (0): the package installed and every test script passed
// * TestFailure (1): a test script failed
// * RuntimeErr (2): the run could not be carried out, e.g. a bad archive or a solver failure
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors or timeouts
)
