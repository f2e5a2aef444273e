package pkgacceptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/pkg-acceptor/activation"
	"github.com/ethereum-optimism/infra/pkg-acceptor/flags"
	"github.com/ethereum-optimism/infra/pkg-acceptor/provision"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config holds the application configuration
type Config struct {
	Package        string               // Archive under test
	TestPrefix     string               // Where the test environment is created
	TargetPlatform *types.Platform      // nil means the current platform
	KeepTestPrefix bool                 // Keep the environment after the run
	Channels       []string             // Channels the test dependencies come from
	CacheDir       string               // Package cache root
	Installer      string               // Solver/installer binary
	Shell          activation.ShellKind // Shell for test scripts, empty for the platform default
	Interpreter    string               // Runs run_test.py
	Timeout        time.Duration        // Whole run, 0 for none
	TestTimeout    time.Duration        // Single test script, 0 for none
	LogDir         string               // Directory to store test logs
	HealthzEnabled bool
	HealthzAddr    string
	MetricsConfig  opmetrics.CLIConfig
	LogConfig      oplog.CLIConfig
	Log            log.Logger
}

// FileConfig is the optional YAML configuration file. Unset fields keep the flag defaults.
type FileConfig struct {
	Channels       []string      `yaml:"channels"`
	TargetPlatform string        `yaml:"target-platform"`
	KeepTestPrefix *bool         `yaml:"keep-test-prefix"`
	CacheDir       string        `yaml:"cache-dir"`
	Installer      string        `yaml:"installer"`
	Shell          string        `yaml:"shell"`
	Interpreter    string        `yaml:"interpreter"`
	Timeout        time.Duration `yaml:"timeout"`
	TestTimeout    time.Duration `yaml:"test-timeout"`
	LogDir         string        `yaml:"logdir"`
}

// LoadFileConfig reads a YAML configuration file
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	fc := &FileConfig{}
	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		var err error
		if fc, err = LoadFileConfig(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Package:        ctx.String(flags.Package.Name),
		TestPrefix:     ctx.String(flags.TestPrefix.Name),
		KeepTestPrefix: pick(ctx, flags.KeepTestPrefix.Name, ctx.Bool(flags.KeepTestPrefix.Name), fc.KeepTestPrefix),
		Channels:       ctx.StringSlice(flags.Channels.Name),
		CacheDir:       pick(ctx, flags.CacheDir.Name, ctx.String(flags.CacheDir.Name), nonZero(fc.CacheDir)),
		Installer:      pick(ctx, flags.Installer.Name, ctx.String(flags.Installer.Name), nonZero(fc.Installer)),
		Interpreter:    pick(ctx, flags.Interpreter.Name, ctx.String(flags.Interpreter.Name), nonZero(fc.Interpreter)),
		Timeout:        pick(ctx, flags.Timeout.Name, ctx.Duration(flags.Timeout.Name), nonZero(fc.Timeout)),
		TestTimeout:    pick(ctx, flags.TestTimeout.Name, ctx.Duration(flags.TestTimeout.Name), nonZero(fc.TestTimeout)),
		LogDir:         pick(ctx, flags.LogDir.Name, ctx.String(flags.LogDir.Name), nonZero(fc.LogDir)),
		HealthzEnabled: ctx.Bool(flags.HealthzEnabled.Name),
		HealthzAddr:    ctx.String(flags.HealthzAddr.Name),
		MetricsConfig:  opmetrics.ReadCLIConfig(ctx),
		LogConfig:      oplog.ReadCLIConfig(ctx),
		Log:            log,
	}
	if !ctx.IsSet(flags.Channels.Name) && len(fc.Channels) > 0 {
		cfg.Channels = fc.Channels
	}

	platform := pick(ctx, flags.TargetPlatform.Name, ctx.String(flags.TargetPlatform.Name), nonZero(fc.TargetPlatform))
	if platform != "" {
		p, err := types.ParsePlatform(platform)
		if err != nil {
			return nil, err
		}
		cfg.TargetPlatform = &p
	}

	shell := pick(ctx, flags.Shell.Name, ctx.String(flags.Shell.Name), nonZero(fc.Shell))
	if shell != "" {
		kind, err := activation.ParseShellKind(shell)
		if err != nil {
			return nil, err
		}
		cfg.Shell = kind
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths() error {
	if c.Package == "" {
		return errors.New("package is required")
	}
	absPackage, err := filepath.Abs(c.Package)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for package '%s': %w", c.Package, err)
	}
	if _, err := os.Stat(absPackage); err != nil {
		return fmt.Errorf("package %s: %w", absPackage, err)
	}
	c.Package = absPackage

	if c.CacheDir == "" {
		if c.CacheDir, err = provision.DefaultCacheDir(os.Getenv); err != nil {
			return err
		}
	}

	if c.TestPrefix == "" {
		if c.TestPrefix, err = os.MkdirTemp("", "pkg-acceptor-env-"); err != nil {
			return fmt.Errorf("failed to create test prefix: %w", err)
		}
	} else if c.TestPrefix, err = filepath.Abs(c.TestPrefix); err != nil {
		return fmt.Errorf("failed to resolve absolute path for test prefix '%s': %w", c.TestPrefix, err)
	}

	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.LogDir, err = filepath.Abs(c.LogDir); err != nil {
		return fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", c.LogDir, err)
	}
	return nil
}

// pick prefers an explicitly set flag, then the config file, then the flag default.
func pick[T any](ctx *cli.Context, name string, flagValue T, fileValue *T) T {
	if ctx.IsSet(name) || fileValue == nil {
		return flagValue
	}
	return *fileValue
}

func nonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
