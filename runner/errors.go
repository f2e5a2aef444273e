package runner

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// ErrTestFailed is matched by every TestFailureError.
var ErrTestFailed = errors.New("test failed")

// TestFailureError reports a test script that exited unsuccessfully or could not be started.
type TestFailureError struct {
	Descriptor types.TestDescriptor
	ExitCode   int
	TimedOut   bool
	Err        error
}

func (e *TestFailureError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s timed out", e.Descriptor)
	case e.ExitCode > 0:
		return fmt.Sprintf("%s failed with exit code %d", e.Descriptor, e.ExitCode)
	default:
		return fmt.Sprintf("%s failed: %v", e.Descriptor, e.Err)
	}
}

func (e *TestFailureError) Unwrap() error {
	return e.Err
}

func (e *TestFailureError) Is(target error) bool {
	return target == ErrTestFailed
}
