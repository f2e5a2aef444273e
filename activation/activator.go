package activation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// ActivationError is returned when an environment's activation state cannot be read.
type ActivationError struct {
	Prefix string
	Err    error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("failed to activate environment %s: %v", e.Prefix, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// Variables describe the shell state activation starts from.
type Variables struct {
	CondaPrefix string   // currently active environment, deactivated first
	Path        []string // PATH before activation
}

// Result is the rendered activation.
type Result struct {
	Script string
	Path   []string // PATH after activation
}

// Activator renders the activation of one installed environment, following the
// conda layout: etc/conda/activate.d, etc/conda/deactivate.d, etc/conda/env_vars.d
// and conda-meta/state.
type Activator struct {
	Prefix              string
	Shell               ShellKind
	Platform            types.Platform
	Paths               []string
	ActivationScripts   []string
	DeactivationScripts []string
	EnvVars             []EnvVar
}

// NewActivator collects the activation state of the environment at prefix.
// Missing directories are not an error; a fresh environment has none of them.
func NewActivator(prefix string, shell ShellKind, platform types.Platform) (*Activator, error) {
	if err := shell.Validate(); err != nil {
		return nil, err
	}
	a := &Activator{
		Prefix:   prefix,
		Shell:    shell,
		Platform: platform,
		Paths:    prefixPaths(prefix, platform),
	}

	var err error
	a.ActivationScripts, err = scriptsIn(filepath.Join(prefix, "etc", "conda", "activate.d"), shell.Extension())
	if err != nil {
		return nil, &ActivationError{Prefix: prefix, Err: err}
	}
	a.DeactivationScripts, err = scriptsIn(filepath.Join(prefix, "etc", "conda", "deactivate.d"), shell.Extension())
	if err != nil {
		return nil, &ActivationError{Prefix: prefix, Err: err}
	}
	a.EnvVars, err = collectEnvVars(prefix)
	if err != nil {
		return nil, &ActivationError{Prefix: prefix, Err: err}
	}
	return a, nil
}

// Activation renders the script that enters this environment on top of vars.
func (a *Activator) Activation(vars Variables) (*Result, error) {
	script := NewScript(a.Shell)
	path := vars.Path

	if vars.CondaPrefix != "" {
		previous, err := NewActivator(vars.CondaPrefix, a.Shell, a.Platform)
		if err != nil {
			return nil, err
		}
		for _, v := range previous.EnvVars {
			script.UnsetEnv(v.Key)
		}
		for _, s := range previous.DeactivationScripts {
			script.Source(s)
		}
		path = removeEntries(path, previous.Paths)
	}

	newPath := make([]string, 0, len(a.Paths)+len(path))
	newPath = append(newPath, a.Paths...)
	newPath = append(newPath, removeEntries(path, a.Paths)...)

	script.SetEnv(a.pathVar(), joinPath(newPath, a.Platform))
	script.SetEnv("CONDA_PREFIX", a.Prefix)
	for _, v := range a.EnvVars {
		script.SetEnv(v.Key, v.Value)
	}
	for _, s := range a.ActivationScripts {
		script.Source(s)
	}

	return &Result{Script: script.String(), Path: newPath}, nil
}

func (a *Activator) pathVar() string {
	if a.Platform.IsWindows() {
		return "Path"
	}
	return "PATH"
}

func prefixPaths(prefix string, platform types.Platform) []string {
	if platform.IsWindows() {
		return []string{
			prefix,
			joinFile(platform, prefix, "Library", "mingw-w64", "bin"),
			joinFile(platform, prefix, "Library", "usr", "bin"),
			joinFile(platform, prefix, "Library", "bin"),
			joinFile(platform, prefix, "Scripts"),
			joinFile(platform, prefix, "bin"),
		}
	}
	return []string{joinFile(platform, prefix, "bin")}
}

func scriptsIn(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var scripts []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != "."+ext {
			continue
		}
		scripts = append(scripts, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(scripts)
	return scripts, nil
}

type prefixState struct {
	EnvVars map[string]string `json:"env_vars"`
}

// collectEnvVars merges etc/conda/env_vars.d/*.json in file order, then conda-meta/state.
func collectEnvVars(prefix string) ([]EnvVar, error) {
	merged := make(map[string]string)

	dir := filepath.Join(prefix, "etc", "conda", "env_vars.d")
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		var vars map[string]string
		if err := readJSON(filepath.Join(dir, name), &vars); err != nil {
			return nil, err
		}
		for k, v := range vars {
			merged[k] = v
		}
	}

	var state prefixState
	statePath := filepath.Join(prefix, "conda-meta", "state")
	if err := readJSON(statePath, &state); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for k, v := range state.EnvVars {
		merged[k] = v
	}

	out := make([]EnvVar, 0, len(merged))
	for k, v := range merged {
		out = append(out, EnvVar{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func readJSON(path string, v any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func removeEntries(path, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}
	out := make([]string, 0, len(path))
	for _, p := range path {
		if _, ok := drop[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}
