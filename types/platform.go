package types

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is a conda subdir name such as "linux-64" or "win-64".
type Platform string

const (
	PlatformNoArch       Platform = "noarch"
	PlatformLinux32      Platform = "linux-32"
	PlatformLinux64      Platform = "linux-64"
	PlatformLinuxAarch64 Platform = "linux-aarch64"
	PlatformLinuxArmV7l  Platform = "linux-armv7l"
	PlatformLinuxPpc64le Platform = "linux-ppc64le"
	PlatformLinuxS390x   Platform = "linux-s390x"
	PlatformOsx64        Platform = "osx-64"
	PlatformOsxArm64     Platform = "osx-arm64"
	PlatformWin32        Platform = "win-32"
	PlatformWin64        Platform = "win-64"
	PlatformWinArm64     Platform = "win-arm64"
)

var knownPlatforms = []Platform{
	PlatformNoArch,
	PlatformLinux32,
	PlatformLinux64,
	PlatformLinuxAarch64,
	PlatformLinuxArmV7l,
	PlatformLinuxPpc64le,
	PlatformLinuxS390x,
	PlatformOsx64,
	PlatformOsxArm64,
	PlatformWin32,
	PlatformWin64,
	PlatformWinArm64,
}

// ParsePlatform validates a platform string.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range knownPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// CurrentPlatform returns the platform this binary was built for.
func CurrentPlatform() Platform {
	return platformFor(runtime.GOOS, runtime.GOARCH)
}

func platformFor(goos, goarch string) Platform {
	switch goos {
	case "windows":
		switch goarch {
		case "386":
			return PlatformWin32
		case "arm64":
			return PlatformWinArm64
		default:
			return PlatformWin64
		}
	case "darwin":
		if goarch == "arm64" {
			return PlatformOsxArm64
		}
		return PlatformOsx64
	default:
		switch goarch {
		case "386":
			return PlatformLinux32
		case "arm64":
			return PlatformLinuxAarch64
		case "arm":
			return PlatformLinuxArmV7l
		case "ppc64le":
			return PlatformLinuxPpc64le
		case "s390x":
			return PlatformLinuxS390x
		default:
			return PlatformLinux64
		}
	}
}

func (p Platform) String() string {
	return string(p)
}

func (p Platform) IsWindows() bool {
	return strings.HasPrefix(string(p), "win-")
}

func (p Platform) IsOSX() bool {
	return strings.HasPrefix(string(p), "osx-")
}

func (p Platform) IsLinux() bool {
	return strings.HasPrefix(string(p), "linux-")
}

// Arch returns the architecture part of the platform, e.g. "64" or "arm64".
// noarch has no architecture and returns an empty string.
func (p Platform) Arch() string {
	if p == PlatformNoArch {
		return ""
	}
	_, arch, found := strings.Cut(string(p), "-")
	if !found {
		return ""
	}
	return arch
}

// MachineArch maps the platform architecture to the GNU machine name used in build triplets.
func (p Platform) MachineArch() string {
	switch p.Arch() {
	case "64":
		return "x86_64"
	case "32":
		return "i686"
	case "aarch64", "arm64":
		if p.IsOSX() {
			return "arm64"
		}
		return "aarch64"
	case "armv7l":
		return "armv7l"
	case "ppc64le":
		return "powerpc64le"
	case "s390x":
		return "s390x"
	default:
		return ""
	}
}
