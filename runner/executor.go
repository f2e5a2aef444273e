package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/pkg-acceptor/activation"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

const (
	DefaultInterpreter = "python"
	waitDelay          = 2 * time.Second
)

// CmdBuilder constructs the child process for a test script. The returned func releases any resources.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

func defaultCmdBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	return exec.CommandContext(ctx, name, arg...), func() {}
}

// Executor runs test scripts inside an activated environment.
type Executor struct {
	shell       activation.ShellKind
	actx        activation.Context
	interpreter string
	timeout     time.Duration
	stdout      io.Writer
	cmdBuilder  CmdBuilder
	log         log.Logger
}

// ExecutorConfig holds configuration for creating an Executor
type ExecutorConfig struct {
	Shell       activation.ShellKind
	Activation  activation.Context
	Interpreter string        // runs ImportScript tests, defaults to python
	Timeout     time.Duration // per script, zero for none
	Stdout      io.Writer     // receives script output as it is produced
	CmdBuilder  CmdBuilder
	Log         log.Logger
}

// NewExecutor creates an executor for one shell family
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.Shell.Validate(); err != nil {
		return nil, err
	}
	if cfg.Interpreter == "" {
		cfg.Interpreter = DefaultInterpreter
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = defaultCmdBuilder
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &Executor{
		shell:       cfg.Shell,
		actx:        cfg.Activation,
		interpreter: cfg.Interpreter,
		timeout:     cfg.Timeout,
		stdout:      cfg.Stdout,
		cmdBuilder:  cfg.CmdBuilder,
		log:         cfg.Log,
	}, nil
}

// Execute runs one descriptor against the environment at root with cwd as working directory.
// Script failures are reported in the result with a *TestFailureError. The returned error is
// reserved for problems preparing the script.
func (e *Executor) Execute(ctx context.Context, d types.TestDescriptor, root, cwd string) (*types.TestResult, error) {
	result := &types.TestResult{Descriptor: d, Status: types.TestStatusSkip}

	content, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test script: %w", err)
	}

	var userCommand string
	switch d.Kind {
	case types.TestKindCommands:
		if d.Extension() != e.shell.Extension() {
			e.log.Debug("Skipping commands for another shell", "test", d.Name(), "shell", e.shell)
			return result, nil
		}
		e.log.Info("Testing commands", "test", d.Name())
		userCommand = string(content)
	case types.TestKindImports:
		e.log.Info("Testing Python imports", "test", d.Name(), "imports", string(content))
		userCommand = fmt.Sprintf("%s \"%s\"", e.interpreter, d.Path)
	default:
		return nil, fmt.Errorf("unknown test kind %q", d.Kind)
	}

	text, err := activation.Synthesize(e.shell, e.actx, root, userCommand)
	if err != nil {
		return nil, err
	}
	scriptPath, err := activation.WriteScript(e.shell, text)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(scriptPath)
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd, cleanup := e.cmdBuilder(ctx, e.shell.Executable(), e.shell.Args(scriptPath)...)
	defer cleanup()

	var output bytes.Buffer
	cmd.Dir = cwd
	cmd.Stdout = io.MultiWriter(e.stdout, &output)
	cmd.Stderr = io.MultiWriter(e.stdout, &output)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(start)
	result.Output = output.String()

	if runErr == nil {
		result.Status = types.TestStatusPass
		return result, nil
	}

	failure := &TestFailureError{Descriptor: d, Err: runErr}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		failure.TimedOut = true
	}
	exitErr := &exec.ExitError{}
	if errors.As(runErr, &exitErr) {
		failure.ExitCode = exitErr.ExitCode()
	}
	result.Status = types.TestStatusFail
	result.Error = failure
	result.ExitCode = failure.ExitCode
	result.TimedOut = failure.TimedOut
	return result, nil
}
