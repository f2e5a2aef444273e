package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

// TestKind distinguishes the embedded test script types.
type TestKind string

const (
	// TestKindCommands is a shell script run by the platform's native shell.
	TestKindCommands TestKind = "commands"
	// TestKindImports is a python script run by the interpreter.
	TestKindImports TestKind = "imports"
)

// Recognized test script file names inside info/test.
const (
	CommandsShellScript = "run_test.sh"
	CommandsBatchScript = "run_test.bat"
	ImportsScript       = "run_test.py"
)

// TestDescriptor is one discovered test script.
type TestDescriptor struct {
	Kind TestKind
	Path string
}

// DescriptorForFile classifies a file name. ok is false for unrecognized names.
func DescriptorForFile(path string) (TestDescriptor, bool) {
	switch filepath.Base(path) {
	case CommandsShellScript, CommandsBatchScript:
		return TestDescriptor{Kind: TestKindCommands, Path: path}, true
	case ImportsScript:
		return TestDescriptor{Kind: TestKindImports, Path: path}, true
	default:
		return TestDescriptor{}, false
	}
}

// Name is the script file name.
func (d TestDescriptor) Name() string {
	return filepath.Base(d.Path)
}

// Extension is the script file extension without the dot.
func (d TestDescriptor) Extension() string {
	return strings.TrimPrefix(filepath.Ext(d.Path), ".")
}

func (d TestDescriptor) String() string {
	return fmt.Sprintf("%s(%s)", d.Kind, d.Name())
}

// TestResult captures the outcome of a single test script
type TestResult struct {
	Descriptor TestDescriptor
	Status     TestStatus
	Error      error
	Duration   time.Duration
	ExitCode   int
	TimedOut   bool
	Output     string // Combined stdout and stderr of the script
	LogFile    string // Path of the captured output, if any
}

// RunState is a step of a package test run.
type RunState string

const (
	RunStateInit             RunState = "init"
	RunStateManifestResolved RunState = "manifest_resolved"
	RunStateProvisioned      RunState = "provisioned"
	RunStateTestsDiscovered  RunState = "tests_discovered"
	RunStateRunning          RunState = "running"
	RunStateCleaned          RunState = "cleaned"
	RunStateDone             RunState = "done"
)

// RunResult captures a complete package test run
type RunResult struct {
	RunID        string
	Package      PackageIdentity
	Archive      string
	Prefix       string
	Dependencies []string
	Tests        []*TestResult
	Status       TestStatus
	State        RunState
	Duration     time.Duration
	Stats        ResultStats
}

// ResultStats tracks test statistics
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
}

// Add updates the counters for one result.
func (s *ResultStats) Add(status TestStatus) {
	s.Total++
	switch status {
	case TestStatusPass:
		s.Passed++
	case TestStatusFail:
		s.Failed++
	case TestStatusSkip:
		s.Skipped++
	}
}

func (r *RunResult) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Package Test Results for %s (%.1fs):\n", r.Package, r.Duration.Seconds()))
	b.WriteString(fmt.Sprintf("Total: %d, Passed: %d, Failed: %d, Skipped: %d\n",
		r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Skipped))
	for _, test := range r.Tests {
		b.WriteString(fmt.Sprintf("├── Test: %s (%.1fs) [status=%s]\n", test.Descriptor.Name(), test.Duration.Seconds(), test.Status))
		if test.Error != nil {
			b.WriteString(fmt.Sprintf("│       └── Error: %s\n", test.Error.Error()))
		}
	}
	b.WriteString(fmt.Sprintf("└── Status: %s\n", r.Status))
	return b.String()
}
