package platform

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/host"
)

// HostDetector implements Detector using the Go runtime and gopsutil.
type HostDetector struct{}

// NewDetector creates a new host platform detector.
func NewDetector() Detector {
	return &HostDetector{}
}

// Detect returns the normalized platform of the current host.
//
// The OS always comes from runtime.GOOS. For the architecture the kernel's
// reported machine string is preferred over GOARCH when available, because
// GOARCH collapses distinctions the asset taxonomy keeps (a GOARCH of "arm"
// may be armv6 or armv7; uname reports "armv7l"). If kernel detection fails
// the detector falls back to GOARCH rather than failing outright.
func (d *HostDetector) Detect(ctx context.Context) (Platform, error) {
	arch := runtime.GOARCH

	kernelArch, err := host.KernelArch()
	if err == nil && kernelArch != "" {
		if _, known := archAliases[kernelArch]; known {
			arch = kernelArch
		}
	} else if ctx.Err() != nil {
		return Platform{}, errors.Wrap(ctx.Err(), "platform detection cancelled")
	}

	p, err := Normalize(runtime.GOOS, arch)
	if err != nil {
		return Platform{}, errors.Wrap(err, "platform detection failed")
	}

	return p, nil
}

// StaticDetector is a Detector that always reports a fixed platform.
// Useful for tests and for cross-platform cache inspection.
type StaticDetector struct {
	Platform Platform
}

// Detect returns the fixed platform.
func (d *StaticDetector) Detect(context.Context) (Platform, error) {
	return d.Platform, nil
}
