package activation

import (
	"runtime"
	"strings"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// Ambient variables forwarded from the host into the test environment.
var forwardedVars = []string{"LANG", "LC_ALL", "MAKEFLAGS", "HOME"}

// Context is the host shell state a test environment is activated on top of.
// It is captured once at process start and passed down explicitly.
type Context struct {
	Path        []string          // PATH entries present before activation
	CondaPrefix string            // environment that is already active, if any
	Platform    types.Platform    // platform the activation script runs on
	CPUCount    int               // exported as CPU_COUNT
	Env         map[string]string // forwarded host variables
}

// ContextFromEnviron builds a Context from "KEY=value" pairs as returned by os.Environ.
func ContextFromEnviron(environ []string, platform types.Platform) Context {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		if platform.IsWindows() {
			key = strings.ToUpper(key)
		}
		env[key] = value
	}

	ctx := Context{
		CondaPrefix: env["CONDA_PREFIX"],
		Platform:    platform,
		CPUCount:    runtime.NumCPU(),
		Env:         make(map[string]string),
	}
	if path, ok := env["PATH"]; ok && path != "" {
		ctx.Path = splitPath(path, platform)
	}
	for _, key := range forwardedVars {
		if value, ok := env[key]; ok {
			ctx.Env[key] = value
		}
	}
	return ctx
}

func pathSeparator(platform types.Platform) string {
	if platform.IsWindows() {
		return ";"
	}
	return ":"
}

func splitPath(path string, platform types.Platform) []string {
	var out []string
	for _, p := range strings.Split(path, pathSeparator(platform)) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinPath(entries []string, platform types.Platform) string {
	return strings.Join(entries, pathSeparator(platform))
}

// joinFile joins path elements with the separator of the target platform.
func joinFile(platform types.Platform, elems ...string) string {
	sep := "/"
	if platform.IsWindows() {
		sep = `\`
	}
	out := strings.TrimRight(elems[0], `/\`)
	for _, e := range elems[1:] {
		out += sep + strings.Trim(e, `/\`)
	}
	return out
}
