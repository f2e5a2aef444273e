package activation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

var ErrUnsupportedShell = errors.New("unsupported shell")

// UnsupportedShellError names the shell that was requested.
type UnsupportedShellError struct {
	Name string
}

func (e *UnsupportedShellError) Error() string {
	return fmt.Sprintf("unsupported shell %q: only bash (POSIX) and cmd.exe are supported", e.Name)
}

func (e *UnsupportedShellError) Is(target error) bool {
	return target == ErrUnsupportedShell
}

// ShellKind is the closed set of shells test scripts can run in.
type ShellKind string

const (
	ShellPosix  ShellKind = "bash"
	ShellCmdExe ShellKind = "cmd.exe"
)

// ParseShellKind maps a user supplied shell name onto a supported shell.
func ParseShellKind(name string) (ShellKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bash", "sh", "posix":
		return ShellPosix, nil
	case "cmd", "cmd.exe", "cmdexe":
		return ShellCmdExe, nil
	default:
		return "", &UnsupportedShellError{Name: name}
	}
}

// DefaultShell is the native shell of the platform.
func DefaultShell(platform types.Platform) ShellKind {
	if platform.IsWindows() {
		return ShellCmdExe
	}
	return ShellPosix
}

// Validate reports an error for values outside the closed set.
func (s ShellKind) Validate() error {
	switch s {
	case ShellPosix, ShellCmdExe:
		return nil
	default:
		return &UnsupportedShellError{Name: string(s)}
	}
}

// Extension is the native script extension without the dot.
func (s ShellKind) Extension() string {
	if s == ShellCmdExe {
		return "bat"
	}
	return "sh"
}

// Executable is the interpreter binary.
func (s ShellKind) Executable() string {
	if s == ShellCmdExe {
		return "cmd.exe"
	}
	return "bash"
}

// Args are the interpreter arguments needed to run the script at path.
func (s ShellKind) Args(path string) []string {
	if s == ShellCmdExe {
		return []string{"/d", "/c", path}
	}
	return []string{path}
}

func (s ShellKind) String() string {
	return string(s)
}
