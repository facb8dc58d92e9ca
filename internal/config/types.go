// Package config parses the declarative pin file (pins.lua) that names
// the tools a user wants resolved, plus resolver options. Pin files are
// Lua executed in a sandboxed VM with a read-only platform table injected,
// so a single file can pin different assets per host.
package config

import (
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
)

// MaxPinCount bounds the pin list so a runaway generated config cannot
// balloon memory.
const MaxPinCount = 500

// repoPattern matches an owner/name repository reference.
var repoPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*/[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Pin declares one tool the user wants resolvable by short name.
type Pin struct {
	// Name is the short name the tool is invoked as. Defaults to the
	// repository's trailing segment.
	Name string `json:"name"`

	// Repo is the owner/name repository reference.
	Repo string `json:"repo"`

	// Version pins an exact release tag. Empty means latest.
	Version string `json:"version,omitempty"`

	// Asset is a substring preference used to break ties between equally
	// scored release assets (for example "musl").
	Asset string `json:"asset,omitempty"`

	// Verify selects the verification policy: none, advisory, or strict.
	Verify string `json:"verify,omitempty"`

	// Key names the GPG keyring used when Verify is strict and a detached
	// signature asset is published.
	Key string `json:"key,omitempty"`
}

// Options carries resolver tuning knobs.
type Options struct {
	// Retries caps download attempts. Zero means the default.
	Retries int `json:"retries,omitempty"`

	// Timeout is the per-request HTTP timeout. Zero means the default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// CacheDir overrides the cache root directory.
	CacheDir string `json:"cache_dir,omitempty"`
}

// Config is a parsed pin file.
type Config struct {
	Pins    []Pin   `json:"pins,omitempty"`
	Options Options `json:"options,omitempty"`
}

// Validate checks structural rules: pin count, repository shape, unique
// names, known verify policies.
func (c *Config) Validate() error {
	if len(c.Pins) > MaxPinCount {
		return errors.Newf("too many pins (%d), maximum is %d", len(c.Pins), MaxPinCount)
	}

	seen := make(map[string]struct{}, len(c.Pins))
	for i, pin := range c.Pins {
		if pin.Repo == "" {
			return errors.Newf("pin %d: repo is required", i+1)
		}
		if !repoPattern.MatchString(pin.Repo) {
			return errors.Newf("pin %d: repo %q is not owner/name", i+1, pin.Repo)
		}
		if pin.Name == "" {
			return errors.Newf("pin %d: name is required", i+1)
		}
		if _, dup := seen[pin.Name]; dup {
			return errors.Newf("pin %d: duplicate name %q", i+1, pin.Name)
		}
		seen[pin.Name] = struct{}{}

		switch pin.Verify {
		case "", "none", "advisory", "strict":
		default:
			return errors.Newf("pin %q: unknown verify policy %q", pin.Name, pin.Verify)
		}
	}

	if c.Options.Retries < 0 {
		return errors.New("options.retries cannot be negative")
	}
	if c.Options.Timeout < 0 {
		return errors.New("options.timeout cannot be negative")
	}
	return nil
}

// PinFor returns the pin declared under name.
func (c *Config) PinFor(name string) (Pin, bool) {
	for _, pin := range c.Pins {
		if pin.Name == name {
			return pin, true
		}
	}
	return Pin{}, false
}
