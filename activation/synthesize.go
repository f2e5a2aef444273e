// Package activation renders the shell scripts that enter an installed environment
// and run a test command inside it.
package activation

import (
	"fmt"
	"os"
	"strings"
)

// PrefixVar is exported to tests so scripts can locate the environment.
const PrefixVar = "PREFIX"

// Synthesize renders, in order: the platform variables except PATH, PREFIX, the
// environment's own activation (which rebuilds PATH) and finally userCommand.
func Synthesize(shell ShellKind, ctx Context, root string, userCommand string) (string, error) {
	if err := shell.Validate(); err != nil {
		return "", err
	}

	vars := NewScript(shell)
	for _, v := range OSVars(root, ctx.Platform, ctx) {
		if strings.EqualFold(v.Key, "PATH") {
			continue
		}
		vars.SetEnv(v.Key, v.Value)
	}
	vars.SetEnv(PrefixVar, root)

	activator, err := NewActivator(root, shell, ctx.Platform)
	if err != nil {
		return "", err
	}
	activation, err := activator.Activation(Variables{CondaPrefix: ctx.CondaPrefix, Path: ctx.Path})
	if err != nil {
		return "", err
	}

	vars.AppendLine("").
		AppendLine(activation.Script).
		AppendLine(userCommand)
	return vars.String(), nil
}

// WriteScript stores text in a new temporary file with the shell's native extension.
// The caller removes the file.
func WriteScript(shell ShellKind, text string) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("pkg-acceptor-test-*.%s", shell.Extension()))
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close script file: %w", err)
	}
	return f.Name(), nil
}
