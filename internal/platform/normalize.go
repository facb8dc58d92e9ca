package platform

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// osAliases maps native OS identifiers to taxonomy tokens.
var osAliases = map[string]string{
	"darwin":  OSDarwin,
	"macos":   OSDarwin,
	"osx":     OSDarwin,
	"linux":   OSLinux,
	"windows": OSWindows,
	"win32":   OSWindows,
	"win64":   OSWindows,
}

// archAliases maps native architecture identifiers (GOARCH values and
// uname -m output) to taxonomy tokens.
var archAliases = map[string]string{
	"amd64":   ArchX8664,
	"x86_64":  ArchX8664,
	"x64":     ArchX8664,
	"arm64":   ArchAarch64,
	"aarch64": ArchAarch64,
	"386":     ArchI686,
	"i386":    ArchI686,
	"i686":    ArchI686,
	"x86":     ArchI686,
	"arm":     ArchArmv7,
	"armv7":   ArchArmv7,
	"armv7l":  ArchArmv7,
	"armhf":   ArchArmv7,
}

// Normalize maps native OS and architecture identifiers onto the closed
// taxonomy. It accepts both Go runtime values ("darwin"/"amd64") and
// uname-style strings ("x86_64", "armv7l").
func Normalize(hostOS, hostArch string) (Platform, error) {
	os, ok := osAliases[strings.ToLower(strings.TrimSpace(hostOS))]
	if !ok {
		return Platform{}, errors.Newf("unsupported operating system: %s", hostOS)
	}

	arch, ok := archAliases[strings.ToLower(strings.TrimSpace(hostArch))]
	if !ok {
		return Platform{}, errors.Newf("unsupported architecture: %s", hostArch)
	}

	return Platform{OS: os, Arch: arch}, nil
}
