// Package platform provides host platform detection, identifier
// normalization, and release-asset matching for grel.
//
// It maps native OS/architecture identifiers (GOOS/GOARCH values as well as
// uname-style strings) onto a closed taxonomy and scores release assets
// against a target platform so the resolver can pick the right download.
// The package is pure except for Detect, which consults the host.
package platform

import "context"

// Operating system identifiers in the normalized taxonomy.
const (
	OSDarwin  = "darwin"
	OSLinux   = "linux"
	OSWindows = "windows"
)

// Architecture identifiers in the normalized taxonomy.
const (
	ArchX8664   = "x86_64"
	ArchAarch64 = "aarch64"
	ArchI686    = "i686"
	ArchArmv7   = "armv7"
)

// Platform identifies a target operating system and architecture using
// normalized taxonomy tokens. Two Platform values are equal iff both
// fields match exactly.
type Platform struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

// Key returns the "<os>-<arch>" string used to partition cache slots.
func (p Platform) Key() string {
	return p.OS + "-" + p.Arch
}

// String returns the platform key.
func (p Platform) String() string {
	return p.Key()
}

// IsLinux returns true if the platform is Linux.
func (p Platform) IsLinux() bool {
	return p.OS == OSLinux
}

// IsMacOS returns true if the platform is macOS.
func (p Platform) IsMacOS() bool {
	return p.OS == OSDarwin
}

// IsWindows returns true if the platform is Windows.
func (p Platform) IsWindows() bool {
	return p.OS == OSWindows
}

// Asset is one downloadable file offered by a release. It is not owned by
// the cache until downloaded.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"downloadUrl"`
	Size        int64  `json:"size"`
}

// Detector is the interface for host platform detection.
type Detector interface {
	Detect(ctx context.Context) (Platform, error)
}
