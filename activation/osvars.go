package activation

import (
	"sort"
	"strconv"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// EnvVar is one variable assignment.
type EnvVar struct {
	Key   string
	Value string
}

// OSVars returns the variables a build or test environment on platform expects,
// sorted by key. PATH is included; callers decide whether to emit it.
func OSVars(prefix string, platform types.Platform, ctx Context) []EnvVar {
	vars := map[string]string{
		"CPU_COUNT": strconv.Itoa(max(ctx.CPUCount, 1)),
		"SHLIB_EXT": sharedLibraryExtension(platform),
		"PATH":      joinPath(ctx.Path, platform),
	}
	for _, key := range []string{"LANG", "LC_ALL", "MAKEFLAGS"} {
		if value, ok := ctx.Env[key]; ok {
			vars[key] = value
		}
	}

	machine := platform.MachineArch()
	switch {
	case platform.IsWindows():
		library := joinFile(platform, prefix, "Library")
		vars["LIBRARY_PREFIX"] = library
		vars["LIBRARY_BIN"] = joinFile(platform, library, "bin")
		vars["LIBRARY_INC"] = joinFile(platform, library, "include")
		vars["LIBRARY_LIB"] = joinFile(platform, library, "lib")
		vars["SCRIPTS"] = joinFile(platform, prefix, "Scripts")
		vars["BUILD"] = machine + "-pc-windows-msvc"
	case platform.IsOSX():
		vars["OSX_ARCH"] = machine
		if machine == "arm64" {
			vars["MACOSX_DEPLOYMENT_TARGET"] = "11.0"
			vars["BUILD"] = "arm64-apple-darwin20.0.0"
		} else {
			vars["MACOSX_DEPLOYMENT_TARGET"] = "10.9"
			vars["BUILD"] = machine + "-apple-darwin13.4.0"
		}
	case platform.IsLinux():
		vars["BUILD"] = machine + "-conda-linux-gnu"
		if home, ok := ctx.Env["HOME"]; ok {
			vars["HOME"] = home
		}
	}

	out := make([]EnvVar, 0, len(vars))
	for key, value := range vars {
		out = append(out, EnvVar{Key: key, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func sharedLibraryExtension(platform types.Platform) string {
	switch {
	case platform.IsWindows():
		return ".dll"
	case platform.IsOSX():
		return ".dylib"
	default:
		return ".so"
	}
}
