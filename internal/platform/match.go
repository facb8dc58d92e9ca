package platform

import (
	"sort"
	"strings"
)

// osPatterns lists the filename tokens that signal each taxonomy OS.
var osPatterns = map[string][]string{
	OSDarwin:  {"darwin", "apple-darwin", "macos", "osx"},
	OSLinux:   {"linux", "unknown-linux", "linux-gnu", "linux-musl"},
	OSWindows: {"windows", "pc-windows", "win64", "win32"},
}

// archPatterns lists the filename tokens that signal each taxonomy
// architecture.
var archPatterns = map[string][]string{
	ArchX8664:   {"x86_64", "amd64", "x64"},
	ArchAarch64: {"aarch64", "arm64"},
	ArchI686:    {"i686", "i386", "386", "x86"},
	ArchArmv7:   {"armv7", "armhf", "arm"},
}

// excludeSignals mark assets that are never runnable binaries: source
// archives, checksum manifests, and signatures. Matching any of these
// forces a score of zero.
var excludeSignals = []string{
	"source", "src",
	"checksum", "sha256", "sha512", "md5", "sums",
	".sig", ".asc", ".minisig", ".pem",
}

// debugSignals mark debug or development builds, which are penalized.
var debugSignals = []string{"debug", "dbg"}

// separators accepted between adjacent OS and architecture tokens.
const separators = "-_."

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// containsAny is plain substring matching, used for exclusion and debug
// signals where fragments like "sha256" appear mid-word ("SHA256SUMS").
func containsAny(name string, signals []string) bool {
	for _, s := range signals {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// matchesAny matches OS and architecture tokens against an asset name.
func matchesAny(name string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(tok, "-") || strings.Contains(tok, ".") {
			// Multi-part tokens carry their own boundaries.
			if strings.Contains(name, tok) {
				return true
			}
			continue
		}
		// Single tokens need boundary checks: plain substring matching
		// would let "arm" match "darwin" and "x86" match "x86_64".
		if boundedContains(name, tok) {
			return true
		}
	}
	return false
}

// ScoreAsset computes the match score of a single asset name against a
// platform. A score of zero means the asset is unusable for the platform.
func ScoreAsset(name string, p Platform) int {
	lower := strings.ToLower(name)

	if containsAny(lower, excludeSignals) {
		return 0
	}

	// An OS match is mandatory, not merely preferred.
	if !matchesAny(lower, osPatterns[p.OS]) {
		return 0
	}
	score := 10

	if matchesAny(lower, archPatterns[p.Arch]) {
		score += 10
	}

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		score += 7
	case strings.HasSuffix(lower, ".zip"):
		score += 5
	}

	if containsAny(lower, debugSignals) {
		score -= 5
	}

	return score
}

// FindMatchingAsset returns the asset best matching the platform, or false
// when no asset scores above zero (including the empty-list case).
//
// Ties are broken by original list order: the first asset reaching the
// maximum score wins. This is a deliberate contract, not a side effect of
// a sorting routine, so callers (and tests) may rely on it.
func FindMatchingAsset(assets []Asset, p Platform) (Asset, bool) {
	var (
		best      Asset
		bestScore int
	)

	for _, asset := range assets {
		if score := ScoreAsset(asset.Name, p); score > bestScore {
			best = asset
			bestScore = score
		}
	}

	if bestScore == 0 {
		return Asset{}, false
	}
	return best, true
}

// IsSupported reports whether any asset in the release is usable for the
// platform.
func IsSupported(assets []Asset, p Platform) bool {
	_, ok := FindMatchingAsset(assets, p)
	return ok
}

// AvailablePlatforms scans asset names for adjacent OS/architecture token
// pairs and returns the sorted union of "<os>-<arch>" keys. Source,
// checksum, and signature assets are ignored. The result feeds diagnostic
// messages when no asset matches the host.
func AvailablePlatforms(assets []Asset) []string {
	seen := make(map[string]struct{})

	for _, asset := range assets {
		lower := strings.ToLower(asset.Name)
		if containsAny(lower, excludeSignals) {
			continue
		}

		for os, osToks := range osPatterns {
			for arch, archToks := range archPatterns {
				if hasAdjacentPair(lower, osToks, archToks) {
					seen[os+"-"+arch] = struct{}{}
				}
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// hasAdjacentPair reports whether name contains an OS token and an
// architecture token next to each other (in either order) separated by a
// single separator character.
func hasAdjacentPair(name string, osToks, archToks []string) bool {
	for _, o := range osToks {
		for _, a := range archToks {
			for _, sep := range separators {
				if boundedContains(name, o+string(sep)+a) ||
					boundedContains(name, a+string(sep)+o) {
					return true
				}
			}
		}
	}
	return false
}

// boundedContains reports whether name contains s with non-alphanumeric
// characters (or string edges) on both sides. Without the boundary check
// "darwin-arm" would match inside "darwin-arm64" and misreport an armv7
// build.
func boundedContains(name, s string) bool {
	for start := 0; ; {
		i := strings.Index(name[start:], s)
		if i < 0 {
			return false
		}
		i += start

		end := i + len(s)
		before := i == 0 || !isAlnum(name[i-1])
		after := end == len(name) || !isAlnum(name[end])

		if strings.HasSuffix(s, "x86") && strings.HasPrefix(name[end:], "_64") {
			after = false
		}

		if before && after {
			return true
		}
		start = i + 1
	}
}
