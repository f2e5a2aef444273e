package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "PKG_ACCEPTOR"

var (
	Package = &cli.StringFlag{
		Name:     "package",
		Aliases:  []string{"p"},
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "PACKAGE"),
		Usage:    "Path to the built package archive to test (.tar.bz2 or .conda)",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Optional YAML file with default settings. Flags take precedence over its values",
	}
	TestPrefix = &cli.StringFlag{
		Name:    "test-prefix",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_PREFIX"),
		Usage:   "Directory to create the test environment in. Defaults to a fresh temporary directory",
	}
	TargetPlatform = &cli.StringFlag{
		Name:    "target-platform",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TARGET_PLATFORM"),
		Usage:   "Platform the environment is solved for (eg. 'linux-64'). Defaults to the current platform",
	}
	KeepTestPrefix = &cli.BoolFlag{
		Name:    "keep-test-prefix",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "KEEP_TEST_PREFIX"),
		Usage:   "Keep the test environment and installer temp files after the run",
	}
	Channels = &cli.StringSliceFlag{
		Name:    "channel",
		Aliases: []string{"c"},
		Value:   cli.NewStringSlice("conda-forge"),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CHANNELS"),
		Usage:   "Channels to resolve test dependencies from, in priority order",
	}
	CacheDir = &cli.StringFlag{
		Name:    "cache-dir",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CACHE_DIR"),
		Usage:   "Package cache directory. Defaults to $RATTLER_CACHE_DIR or the user cache directory",
	}
	Installer = &cli.StringFlag{
		Name:    "installer",
		Value:   "micromamba",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INSTALLER"),
		Usage:   "Solver/installer binary used to create the test environment",
	}
	Shell = &cli.StringFlag{
		Name:    "shell",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHELL"),
		Usage:   "Shell used to run test scripts ('bash' or 'cmd.exe'). Defaults to the platform shell",
	}
	Interpreter = &cli.StringFlag{
		Name:    "interpreter",
		Value:   "python",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INTERPRETER"),
		Usage:   "Interpreter used to run run_test.py",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Timeout for the whole run (eg. '30m'). 0 disables it",
	}
	TestTimeout = &cli.DurationFlag{
		Name:    "test-timeout",
		Value:   10 * time.Minute,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_TIMEOUT"),
		Usage:   "Timeout for a single test script. 0 disables it",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-test output",
	}
	HealthzEnabled = &cli.BoolFlag{
		Name:    "healthz.enabled",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ENABLED"),
		Usage:   "Serve /healthz while the run is in progress",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "0.0.0.0:8080",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Address of the healthz server",
	}
)

var requiredFlags = []cli.Flag{
	Package,
}

var optionalFlags = []cli.Flag{
	ConfigFile,
	TestPrefix,
	TargetPlatform,
	KeepTestPrefix,
	Channels,
	CacheDir,
	Installer,
	Shell,
	Interpreter,
	Timeout,
	TestTimeout,
	LogDir,
	HealthzEnabled,
	HealthzAddr,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
