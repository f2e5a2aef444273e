package pkgacceptor

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/pkg-acceptor/runner"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// RuntimeError means the package could not be tested at all and leads to exit code 2.
// Examples are an unreadable archive, a malformed manifest or a solver failure.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError means a test script of the package failed and leads to exit code 1.
type TestFailureError struct {
	Package  types.PackageIdentity
	Test     string
	ExitCode int
	TimedOut bool
	Err      error
}

func (e *TestFailureError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("test failure: %s of %s timed out", e.Test, e.Package)
	case e.ExitCode > 0:
		return fmt.Sprintf("test failure: %s of %s exited with code %d", e.Test, e.Package, e.ExitCode)
	default:
		return fmt.Sprintf("test failure: %s of %s: %v", e.Test, e.Package, e.Err)
	}
}

func (e *TestFailureError) Unwrap() error {
	return e.Err
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// classifyRunError maps an orchestrator error onto the exit code families.
func classifyRunError(pkg types.PackageIdentity, err error) error {
	if err == nil {
		return nil
	}
	var failure *runner.TestFailureError
	if errors.As(err, &failure) {
		return &TestFailureError{
			Package:  pkg,
			Test:     failure.Descriptor.Name(),
			ExitCode: failure.ExitCode,
			TimedOut: failure.TimedOut,
			Err:      err,
		}
	}
	return NewRuntimeError(err)
}
