package download

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// nonExecutableExts are file extensions that never denote a runnable
// binary, even when the file happens to carry an execute bit (tarballs
// routinely mark docs and scripts executable).
var nonExecutableExts = map[string]struct{}{
	".md": {}, ".markdown": {}, ".txt": {}, ".rst": {}, ".adoc": {},
	".html": {}, ".htm": {}, ".pdf": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".conf": {},
	".sh": {}, ".bash": {}, ".zsh": {}, ".fish": {}, ".ps1": {},
	".py": {}, ".rb": {}, ".pl": {},
	".gz": {}, ".tgz": {}, ".zip": {}, ".tar": {},
	".sig": {}, ".asc": {}, ".sha256": {}, ".pem": {},
	".1": {}, ".5": {}, ".8": {},
}

// nonExecutableNames are basenames (extension stripped, lowercased) that
// denote documentation rather than binaries.
var nonExecutableNames = map[string]struct{}{
	"license": {}, "licence": {}, "copying": {}, "notice": {},
	"readme": {}, "changelog": {}, "changes": {}, "news": {},
	"authors": {}, "contributors": {}, "install": {}, "todo": {},
}

// windowsExecutableExts are collected on Windows regardless of mode bits.
var windowsExecutableExts = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {},
}

// FindExecutables walks the extracted tree rooted at root and returns the
// executable files found, in deterministic depth-first order (entries
// sorted by name at each level) so downstream "pick the best executable"
// logic is reproducible.
//
// On Unix-like targets, files already carrying an execute bit are
// collected; files with no extension or a ".bin" extension but no execute
// bit are promoted (chmod +x) and collected. Known documentation names and
// non-binary extensions are skipped even when executable. On Windows,
// .exe/.bat/.cmd files are collected regardless of permission bits.
//
// The walk uses an explicit stack rather than recursion so pathological
// directory depths cannot exhaust the goroutine stack.
func FindExecutables(root string) ([]string, error) {
	var executables []string

	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "read directory %s", dir)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		var subdirs []string
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				subdirs = append(subdirs, path)
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			ok, err := isExecutableCandidate(path, entry.Name())
			if err != nil {
				return nil, err
			}
			if ok {
				executables = append(executables, path)
			}
		}

		// Push in reverse so the first subdirectory is processed next,
		// preserving sorted depth-first order.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return executables, nil
}

func isExecutableCandidate(path, name string) (bool, error) {
	lower := strings.ToLower(name)
	ext := filepath.Ext(lower)

	if runtime.GOOS == "windows" {
		_, ok := windowsExecutableExts[ext]
		return ok, nil
	}

	base := strings.TrimSuffix(lower, ext)
	if _, skip := nonExecutableNames[base]; skip {
		return false, nil
	}
	if _, skip := nonExecutableExts[ext]; skip {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, errors.Wrapf(err, "stat %s", path)
	}

	if info.Mode().Perm()&0o111 != 0 {
		return true, nil
	}

	// Extensionless files and .bin files are almost certainly the binary;
	// archives frequently lose mode bits in transit, so promote them.
	if ext == "" || ext == ".bin" {
		if err := os.Chmod(path, info.Mode().Perm()|0o755); err != nil {
			return false, errors.Wrapf(err, "set executable bit on %s", path)
		}
		return true, nil
	}

	return false, nil
}

// SetExecutable sets 0755 permissions on a file. No-op on Windows where
// execute bits do not exist.
func SetExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return errors.Wrap(err, "set executable")
	}
	return nil
}
