// Package runner discovers and executes the test scripts embedded in a package
// and drives a complete test run from archive to cleanup.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/pkg-acceptor/activation"
	"github.com/ethereum-optimism/infra/pkg-acceptor/archive"
	"github.com/ethereum-optimism/infra/pkg-acceptor/index"
	"github.com/ethereum-optimism/infra/pkg-acceptor/logging"
	"github.com/ethereum-optimism/infra/pkg-acceptor/matchspec"
	"github.com/ethereum-optimism/infra/pkg-acceptor/metrics"
	"github.com/ethereum-optimism/infra/pkg-acceptor/provision"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// TestConfiguration is supplied by the caller and fixed for one run.
type TestConfiguration struct {
	TestPrefix     string
	TargetPlatform *types.Platform // defaults to the platform the tests run on
	KeepTestPrefix bool
	Channels       []string
	Shell          activation.ShellKind // defaults to the platform shell
	Interpreter    string
	TestTimeout    time.Duration
}

// EnvironmentProvisioner creates the environment a package is tested in.
type EnvironmentProvisioner interface {
	Provision(ctx context.Context, req provision.Request) (*provision.Environment, error)
	Cache() provision.PackageCache
}

var _ EnvironmentProvisioner = (*provision.Provisioner)(nil)

// Orchestrator runs the complete test sequence for a package archive.
type Orchestrator struct {
	provisioner EnvironmentProvisioner
	indexer     index.Indexer
	activation  activation.Context
	stdout      io.Writer
	cmdBuilder  CmdBuilder
	fileLogger  *logging.FileLogger
	log         log.Logger
	tracer      trace.Tracer
}

// Config holds configuration for creating a new Orchestrator
type Config struct {
	Provisioner EnvironmentProvisioner
	Indexer     index.Indexer
	Activation  activation.Context // host shell state, captured once at startup
	Stdout      io.Writer
	CmdBuilder  CmdBuilder
	FileLogger  *logging.FileLogger // optional
	Log         log.Logger
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Provisioner == nil {
		return nil, fmt.Errorf("provisioner is required")
	}
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if cfg.Activation.Platform == "" {
		return nil, fmt.Errorf("activation platform is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Orchestrator{
		provisioner: cfg.Provisioner,
		indexer:     cfg.Indexer,
		activation:  cfg.Activation,
		stdout:      cfg.Stdout,
		cmdBuilder:  cfg.CmdBuilder,
		fileLogger:  cfg.FileLogger,
		log:         cfg.Log,
		tracer:      otel.Tracer("package test runner"),
	}, nil
}

// RunTest tests the package at archivePath. The returned result is never nil and
// reflects how far the run got. The first failing test stops the run and is
// returned as a *TestFailureError.
func (o *Orchestrator) RunTest(ctx context.Context, archivePath string, cfg TestConfiguration) (result *types.RunResult, err error) {
	start := time.Now()
	result = &types.RunResult{
		RunID:   o.runID(),
		Archive: archivePath,
		Status:  types.TestStatusFail,
		State:   types.RunStateInit,
		Stats:   types.ResultStats{StartTime: start},
	}
	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("package %s", filepath.Base(archivePath)))
	defer span.End()

	logger := o.log.New("run_id", result.RunID)
	defer func() {
		result.Duration = time.Since(start)
		result.Stats.EndTime = time.Now()
		if err == nil {
			result.Status = types.TestStatusPass
		}
		o.transition(logger, result, types.RunStateDone)
		metrics.RecordRun(result.Package.CacheKey(), result.RunID, result.Status, result.Duration)
	}()

	pkg, err := identify(archivePath)
	if err != nil {
		return result, err
	}
	result.Package = pkg
	span.SetAttributes(attribute.String("package", pkg.CacheKey()))

	// The archive is published under the target subdir, the environment is
	// always solved for the platform the tests run on.
	hostPlatform := o.activation.Platform
	platform := hostPlatform
	if cfg.TargetPlatform != nil {
		platform = *cfg.TargetPlatform
	}
	shell := cfg.Shell
	if shell == "" {
		shell = activation.DefaultShell(hostPlatform)
	}
	executor, err := NewExecutor(ExecutorConfig{
		Shell:       shell,
		Activation:  o.activation,
		Interpreter: cfg.Interpreter,
		Timeout:     cfg.TestTimeout,
		Stdout:      o.stdout,
		CmdBuilder:  o.cmdBuilder,
		Log:         logger,
	})
	if err != nil {
		return result, err
	}

	channel, err := os.MkdirTemp("", "pkg-acceptor-channel-")
	if err != nil {
		return result, fmt.Errorf("failed to create temporary channel: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(channel); rmErr != nil {
			logger.Warn("Failed to remove temporary channel", "path", channel, "err", rmErr)
		}
		if !cfg.KeepTestPrefix {
			o.removePrefix(logger, result.Prefix, cfg.TestPrefix)
		} else {
			logger.Info("Keeping test prefix", "prefix", prefixOr(result.Prefix, cfg.TestPrefix))
		}
		o.transition(logger, result, types.RunStateCleaned)
	}()

	if err := o.publish(ctx, archivePath, channel, platform); err != nil {
		return result, err
	}
	channels := append([]string{channelURL(channel)}, cfg.Channels...)

	deps, err := o.resolveManifest(ctx, archivePath)
	if err != nil {
		return result, err
	}
	o.transition(logger, result, types.RunStateManifestResolved)

	env, err := o.provision(ctx, provision.Request{
		Package:      pkg,
		Dependencies: deps,
		Platform:     hostPlatform,
		TargetDir:    cfg.TestPrefix,
		Channels:     channels,
		NoClean:      cfg.KeepTestPrefix,
	})
	if env != nil {
		result.Prefix = env.Prefix
		result.Dependencies = env.Specs
	}
	if err != nil {
		return result, err
	}
	o.transition(logger, result, types.RunStateProvisioned)

	testDir := TestDir(o.provisioner.Cache().Dir(pkg.CacheKey()))
	logger.Info("Collecting tests", "dir", testDir)
	descriptors, err := ScanTests(testDir)
	if err != nil {
		return result, err
	}
	o.transition(logger, result, types.RunStateTestsDiscovered)

	o.transition(logger, result, types.RunStateRunning)
	for _, d := range descriptors {
		testResult, err := o.runOne(ctx, executor, pkg, d, result.Prefix, testDir)
		if err != nil {
			return result, err
		}
		result.Tests = append(result.Tests, testResult)
		result.Stats.Add(testResult.Status)
		if testResult.Status == types.TestStatusFail {
			logger.Error("Test failed", "test", d.Name(), "err", testResult.Error)
			return result, testResult.Error
		}
	}

	logger.Info("All tests passed", "package", pkg, "tests", len(result.Tests))
	return result, nil
}

func (o *Orchestrator) runID() string {
	if o.fileLogger != nil {
		return o.fileLogger.GetRunID()
	}
	return uuid.New().String()
}

func (o *Orchestrator) transition(logger log.Logger, result *types.RunResult, state types.RunState) {
	logger.Debug("Run state changed", "from", result.State, "to", state)
	result.State = state
}

func identify(archivePath string) (types.PackageIdentity, error) {
	name := filepath.Base(archivePath)
	if archivePath == "" || name == "." || name == string(filepath.Separator) {
		return types.PackageIdentity{}, types.ErrMissingFileName
	}
	if _, err := types.ArchiveFormatFromPath(name); err != nil {
		return types.PackageIdentity{}, err
	}
	return types.IdentityFromPath(name)
}

// publish copies the archive into <channel>/<platform>/ and indexes the channel.
func (o *Orchestrator) publish(ctx context.Context, archivePath, channel string, platform types.Platform) error {
	ctx, span := o.tracer.Start(ctx, "publish")
	defer span.End()

	subdir := filepath.Join(channel, platform.String())
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return fmt.Errorf("failed to create channel subdir: %w", err)
	}
	if err := copyFile(archivePath, filepath.Join(subdir, filepath.Base(archivePath))); err != nil {
		return err
	}
	if err := o.indexer.Index(ctx, channel, platform); err != nil {
		return fmt.Errorf("failed to index temporary channel: %w", err)
	}
	return nil
}

func (o *Orchestrator) resolveManifest(ctx context.Context, archivePath string) ([]matchspec.MatchSpec, error) {
	ctx, span := o.tracer.Start(ctx, "manifest")
	defer span.End()

	loc, err := archive.Open(archivePath)
	if err != nil {
		return nil, err
	}
	return archive.ReadTestDependencies(ctx, loc, archive.TestDependenciesPath)
}

func (o *Orchestrator) provision(ctx context.Context, req provision.Request) (*provision.Environment, error) {
	ctx, span := o.tracer.Start(ctx, "provision")
	defer span.End()
	return o.provisioner.Provision(ctx, req)
}

func (o *Orchestrator) runOne(ctx context.Context, executor *Executor, pkg types.PackageIdentity, d types.TestDescriptor, prefix, cwd string) (*types.TestResult, error) {
	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("test %s", d.Name()))
	defer span.End()

	result, err := executor.Execute(ctx, d, prefix, cwd)
	if err != nil {
		return nil, err
	}
	metrics.RecordTest(pkg.CacheKey(), d.Kind, result.Status)
	if o.fileLogger != nil {
		if err := o.fileLogger.LogTestResult(pkg, result); err != nil {
			o.log.Warn("Failed to log test result", "test", d.Name(), "err", err)
		}
	}
	return result, nil
}

func (o *Orchestrator) removePrefix(logger log.Logger, canonical, requested string) {
	prefix := prefixOr(canonical, requested)
	if prefix == "" {
		return
	}
	if err := os.RemoveAll(prefix); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove test prefix", "prefix", prefix, "err", err)
		return
	}
	logger.Debug("Removed test prefix", "prefix", prefix)
}

func prefixOr(canonical, requested string) string {
	if canonical != "" {
		return canonical
	}
	return requested
}

func channelURL(dir string) string {
	path := filepath.ToSlash(dir)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return (&url.URL{Scheme: "file", Path: path}).String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy archive: %w", err)
	}
	return out.Close()
}
