package channel

import "fmt"

// Platform is a platform subdirectory tag of a conda channel, used as a path
// segment under the channel root.
type Platform string

const (
	PlatformNoArch           Platform = "noarch"
	PlatformLinux32          Platform = "linux-32"
	PlatformLinux64          Platform = "linux-64"
	PlatformLinuxAarch64     Platform = "linux-aarch64"
	PlatformLinuxArmV6l      Platform = "linux-armv6l"
	PlatformLinuxArmV7l      Platform = "linux-armv7l"
	PlatformLinuxPpc64       Platform = "linux-ppc64"
	PlatformLinuxPpc64le     Platform = "linux-ppc64le"
	PlatformLinuxRiscv64     Platform = "linux-riscv64"
	PlatformLinuxS390x       Platform = "linux-s390x"
	PlatformOsx64            Platform = "osx-64"
	PlatformOsxArm64         Platform = "osx-arm64"
	PlatformWin32            Platform = "win-32"
	PlatformWin64            Platform = "win-64"
	PlatformWinArm64         Platform = "win-arm64"
	PlatformEmscriptenWasm32 Platform = "emscripten-wasm32"
	PlatformWasiWasm32       Platform = "wasi-wasm32"
	PlatformFreeBSD64        Platform = "freebsd-64"
	PlatformZos              Platform = "zos-z"
)

// allPlatforms is the closed universe of known platform tags. Discovery
// probes each of these when no explicit subdir list is given.
var allPlatforms = []Platform{
	PlatformNoArch,
	PlatformLinux32,
	PlatformLinux64,
	PlatformLinuxAarch64,
	PlatformLinuxArmV6l,
	PlatformLinuxArmV7l,
	PlatformLinuxPpc64,
	PlatformLinuxPpc64le,
	PlatformLinuxRiscv64,
	PlatformLinuxS390x,
	PlatformOsx64,
	PlatformOsxArm64,
	PlatformWin32,
	PlatformWin64,
	PlatformWinArm64,
	PlatformEmscriptenWasm32,
	PlatformWasiWasm32,
	PlatformFreeBSD64,
	PlatformZos,
}

// AllPlatforms returns the closed set of known platforms.
func AllPlatforms() []Platform {
	platforms := make([]Platform, len(allPlatforms))
	copy(platforms, allPlatforms)
	return platforms
}

// ParsePlatform validates given tag against the known platform set.
func ParsePlatform(s string) (Platform, error) {
	for _, p := range allPlatforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// String is the fmt.Stringer implementation of Platform.
func (p Platform) String() string {
	return string(p)
}
