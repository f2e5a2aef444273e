// Package pkgacceptor tests a built conda package: it provisions an isolated
// environment with the package and its test dependencies and runs the test
// scripts embedded in the archive.
package pkgacceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/pkg-acceptor/activation"
	"github.com/ethereum-optimism/infra/pkg-acceptor/exitcodes"
	"github.com/ethereum-optimism/infra/pkg-acceptor/index"
	"github.com/ethereum-optimism/infra/pkg-acceptor/logging"
	"github.com/ethereum-optimism/infra/pkg-acceptor/metrics"
	"github.com/ethereum-optimism/infra/pkg-acceptor/provision"
	"github.com/ethereum-optimism/infra/pkg-acceptor/runner"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// acceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &acceptor{}

// PackageTester runs the complete test sequence for one archive.
type PackageTester interface {
	RunTest(ctx context.Context, archivePath string, cfg runner.TestConfiguration) (*types.RunResult, error)
}

var _ PackageTester = (*runner.Orchestrator)(nil)

// acceptor tests a single package archive and then asks the application to shut down.
type acceptor struct {
	config     *Config
	version    string
	tester     PackageTester
	formatter  ResultFormatter
	fileLogger *logging.FileLogger
	result     *types.RunResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New wires the orchestrator from config. actx is the host shell state captured at startup.
func New(config *Config, version string, actx activation.Context, shutdownCallback func(error)) (*acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating pkg-acceptor with config",
		"package", config.Package,
		"testPrefix", config.TestPrefix,
		"cacheDir", config.CacheDir,
		"channels", config.Channels,
		"installer", config.Installer)

	fileLogger, err := logging.NewFileLogger(config.LogDir, uuid.New().String())
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	installer := provision.NewCommandInstaller(config.Installer, os.Stdout, nil, config.Log)
	provisioner, err := provision.NewProvisioner(config.CacheDir, installer, config.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create provisioner: %w", err)
	}

	orchestrator, err := runner.NewOrchestrator(runner.Config{
		Provisioner: provisioner,
		Indexer:     index.NewFileIndexer(config.Log),
		Activation:  actx,
		Stdout:      os.Stdout,
		FileLogger:  fileLogger,
		Log:         config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return &acceptor{
		config:           config,
		version:          version,
		tester:           orchestrator,
		formatter:        NewConsoleResultFormatter(os.Stdout),
		fileLogger:       fileLogger,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start tests the configured package.
// Start implements the cliapp.Lifecycle interface.
func (a *acceptor) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.running.Store(true)
	a.config.Log.Info("Starting pkg-acceptor", "version", a.version, "package", a.config.Package)

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	result, err := a.tester.RunTest(ctx, a.config.Package, a.testConfiguration())
	a.result = result
	a.report(os.Stdout)

	var pkg types.PackageIdentity
	if result != nil {
		pkg = result.Package
	}
	if err := classifyRunError(pkg, err); err != nil {
		if IsTestFailureError(err) {
			a.config.Log.Warn("Package test run completed with failures, returning exit code 1", "error", err)
		} else {
			a.config.Log.Error("Runtime error testing package", "error", err)
			metrics.RecordErrorDetails("run", err)
		}
		return err
	}

	a.config.Log.Info("Package tests completed, exiting")
	go func() {
		a.shutdownCallback(nil)
	}()
	return nil
}

func (a *acceptor) testConfiguration() runner.TestConfiguration {
	return runner.TestConfiguration{
		TestPrefix:     a.config.TestPrefix,
		TargetPlatform: a.config.TargetPlatform,
		KeepTestPrefix: a.config.KeepTestPrefix,
		Channels:       a.config.Channels,
		Shell:          a.config.Shell,
		Interpreter:    a.config.Interpreter,
		TestTimeout:    a.config.TestTimeout,
	}
}

func (a *acceptor) report(out io.Writer) {
	if a.result == nil {
		return
	}
	if err := a.formatter.FormatResults(a.result); err != nil {
		a.config.Log.Error("Failed to format results", "error", err)
	}
	fmt.Fprintln(out, a.result.String())

	if a.fileLogger == nil {
		return
	}
	if err := a.fileLogger.LogSummary(a.result.String()); err != nil {
		a.config.Log.Error("Failed to write summary", "error", err)
	}
	if err := a.fileLogger.Complete(); err != nil {
		a.config.Log.Error("Failed to complete file logger", "error", err)
	}
	a.config.Log.Info("Test logs written", "dir", a.fileLogger.GetBaseDir())
}

// Stop stops the pkg-acceptor service.
// Stop implements the cliapp.Lifecycle interface.
func (a *acceptor) Stop(ctx context.Context) error {
	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)
	a.config.Log.Info("pkg-acceptor stopped successfully")
	return nil
}

// Stopped returns true if the pkg-acceptor service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *acceptor) Stopped() bool {
	return !a.running.Load()
}
