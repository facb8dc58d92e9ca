package cache

import (
	"time"

	"github.com/RosalindThackerByrne/grel/internal/platform"
)

// Metadata describes exactly one cached binary. It is written once by
// CacheBinary and never mutated afterwards; a re-cache of the same slot
// supersedes the whole file.
type Metadata struct {
	Repo        string            `json:"repo"`
	Version     string            `json:"version"`
	Platform    platform.Platform `json:"platform"`
	BinaryPath  string            `json:"binaryPath"`
	InstallDate time.Time         `json:"installDate"`
	Checksum    string            `json:"checksum,omitempty"`
}

// Usage tracks cache hits for one slot. It lives in a sidecar file next to
// metadata.json so hit-tracking never rewrites install-time facts.
type Usage struct {
	LastUsed   time.Time `json:"lastUsed"`
	UsageCount int       `json:"usageCount"`
}

const (
	metadataFile = "metadata.json"
	usageFile    = "cache-entry.json"
	latestLink   = "latest"
)
