package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

const (
	// DefaultInstallerBinary is the solver/installer invoked to create test environments.
	DefaultInstallerBinary = "micromamba"
	// PkgsDirsEnvVar points the installer at our package cache.
	PkgsDirsEnvVar  = "CONDA_PKGS_DIRS"
	specFilePattern = "pkg-acceptor-specs-*.txt"
)

// InstallRequest describes one environment to solve and install.
type InstallRequest struct {
	Specs    []string
	Platform types.Platform
	Prefix   string
	Channels []string
	CacheDir string
	NoClean  bool
}

// Installer solves a set of match specs and installs them into a prefix.
type Installer interface {
	Install(ctx context.Context, req InstallRequest) error
}

// CmdBuilder constructs the process used by CommandInstaller. The returned func releases any resources.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

var _ Installer = (*CommandInstaller)(nil)

// CommandInstaller delegates solving and linking to an external conda-compatible installer.
type CommandInstaller struct {
	Binary     string
	Output     io.Writer
	cmdBuilder CmdBuilder
	log        log.Logger
}

// NewCommandInstaller creates an installer around binary. A nil cmdBuilder uses exec.CommandContext.
func NewCommandInstaller(binary string, output io.Writer, cmdBuilder CmdBuilder, logger log.Logger) *CommandInstaller {
	if binary == "" {
		binary = DefaultInstallerBinary
	}
	if cmdBuilder == nil {
		cmdBuilder = defaultCmdBuilder
	}
	if output == nil {
		output = os.Stdout
	}
	if logger == nil {
		logger = log.Root()
	}
	return &CommandInstaller{
		Binary:     binary,
		Output:     output,
		cmdBuilder: cmdBuilder,
		log:        logger,
	}
}

func defaultCmdBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	return exec.CommandContext(ctx, name, arg...), func() {}
}

// Install writes the specs to a file next to the prefix and runs the installer against it.
func (i *CommandInstaller) Install(ctx context.Context, req InstallRequest) error {
	if len(req.Specs) == 0 {
		return errors.New("no specs to install")
	}
	if req.Prefix == "" {
		return errors.New("prefix cannot be empty")
	}

	// The installer refuses to create into an existing directory, so drop the empty placeholder.
	if err := removeIfEmpty(req.Prefix); err != nil {
		return err
	}

	specFile, err := writeSpecFile(filepath.Dir(req.Prefix), req.Specs)
	if err != nil {
		return err
	}
	if !req.NoClean {
		defer func() {
			_ = os.Remove(specFile)
		}()
	}

	args := i.buildArgs(req, specFile)
	cmd, cleanup := i.cmdBuilder(ctx, i.Binary, args...)
	defer cleanup()

	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", PkgsDirsEnvVar, PackageCache{Root: req.CacheDir}.PkgsDir()))
	cmd.Stdout = i.Output
	cmd.Stderr = i.Output

	i.log.Info("Creating test environment", "prefix", req.Prefix, "platform", req.Platform, "specs", len(req.Specs))
	if err := cmd.Run(); err != nil {
		exitErr := &exec.ExitError{}
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d", i.Binary, exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run %s: %w", i.Binary, err)
	}
	return nil
}

// writeSpecFile writes one spec per line to a uniquely named file in dir.
func writeSpecFile(dir string, specs []string) (string, error) {
	f, err := os.CreateTemp(dir, specFilePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create spec file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(specs, "\n") + "\n"); err != nil {
		return "", fmt.Errorf("failed to write spec file: %w", err)
	}
	return f.Name(), nil
}

func (i *CommandInstaller) buildArgs(req InstallRequest, specFile string) []string {
	args := []string{
		"create", "--yes",
		"--prefix", req.Prefix,
		"--platform", req.Platform.String(),
		"--override-channels",
	}
	for _, ch := range req.Channels {
		args = append(args, "-c", ch)
	}
	return append(args, "--file", specFile)
}

func removeIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read prefix %s: %w", dir, err)
	}
	if len(entries) > 0 {
		return nil
	}
	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("failed to remove empty prefix %s: %w", dir, err)
	}
	return nil
}
