package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	pkgacceptor "github.com/ethereum-optimism/infra/pkg-acceptor"
	"github.com/ethereum-optimism/infra/pkg-acceptor/activation"
	"github.com/ethereum-optimism/infra/pkg-acceptor/exitcodes"
	"github.com/ethereum-optimism/infra/pkg-acceptor/flags"
	"github.com/ethereum-optimism/infra/pkg-acceptor/service"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "pkg-acceptor"
	app.Usage = "Conda Package Acceptance Tester"
	app.Description = "pkg-acceptor installs a freshly built package into an isolated environment and runs its embedded tests"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if pkgacceptor.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if pkgacceptor.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			}
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := pkgacceptor.NewConfig(ctx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, pkgacceptor.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	svc := service.New(serviceConfig(cfg))
	svc.Start()
	go func() {
		<-ctx.Context.Done()
		svc.Shutdown()
	}()

	// The host shell state is captured once here and passed down explicitly.
	actx := activation.ContextFromEnviron(os.Environ(), types.CurrentPlatform())

	acceptor, err := pkgacceptor.New(cfg, Version, actx, closeApp)
	if err != nil {
		return nil, pkgacceptor.NewRuntimeError(fmt.Errorf("failed to create pkg-acceptor: %w", err))
	}
	return acceptor, nil
}

func serviceConfig(cfg *pkgacceptor.Config) service.Config {
	var svcCfg service.Config
	if cfg.HealthzEnabled {
		svcCfg.HealthzAddr = cfg.HealthzAddr
	}
	if cfg.MetricsConfig.Enabled {
		svcCfg.MetricsAddr = net.JoinHostPort(cfg.MetricsConfig.ListenAddr, strconv.Itoa(cfg.MetricsConfig.ListenPort))
	}
	return svcCfg
}
