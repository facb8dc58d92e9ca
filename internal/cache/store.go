// Package cache owns the on-disk layout for cached binaries, their
// metadata, and usage statistics.
//
// Layout per slot:
//
//	<root>/<owner>/<repo>/<version>/<os>-<arch>/
//	    <binary>[.exe]
//	    metadata.json
//	    cache-entry.json    (created lazily on first hit)
//	<root>/<owner>/<repo>/latest    (best-effort symlink to <version>/<os>-<arch>)
//
// Slot state is always re-derived from the filesystem: a slot counts as
// cached only while both metadata.json and the binary it references exist,
// so out-of-band deletion of the binary collapses the slot back to absent.
package cache

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/RosalindThackerByrne/grel/internal/platform"
)

// ErrInvalidMetadata marks a malformed or incomplete metadata.json. Slots
// carrying one are treated as absent rather than failing the whole run.
var ErrInvalidMetadata = errors.New("invalid cache metadata")

// Store manages one cache root directory.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir. The directory is created on the
// first write, not here.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the slot directory for one (owner, repo, version, platform)
// tuple. Pure and injective: distinct tuples never collide.
func (s *Store) Path(owner, repo, version string, p platform.Platform) string {
	return filepath.Join(s.root, owner, repo, version, p.Key())
}

// IsCached reports whether a slot holds a usable binary. Both the metadata
// file and the binary it references must exist.
func (s *Store) IsCached(owner, repo, version string, p platform.Platform) bool {
	_, err := s.readMetadata(s.Path(owner, repo, version, p))
	return err == nil
}

// CacheBinary commits a downloaded binary into its slot and returns the
// cached path. The source file is copied, never moved: cleanup of the
// temporary download stays with the caller.
func (s *Store) CacheBinary(owner, repo, version string, p platform.Platform, sourcePath, checksum string) (string, error) {
	slot := s.Path(owner, repo, version, p)
	if err := os.MkdirAll(slot, 0o755); err != nil {
		return "", errors.Wrapf(err, "create cache slot %s", slot)
	}

	// The cached binary takes the repository's short name, not the
	// original asset filename.
	name := repo
	if p.IsWindows() {
		name += ".exe"
	}
	dest := filepath.Join(slot, name)

	if err := copyFile(sourcePath, dest); err != nil {
		return "", err
	}
	if !p.IsWindows() {
		if err := os.Chmod(dest, 0o755); err != nil {
			return "", errors.Wrapf(err, "set executable bit on %s", dest)
		}
	}

	meta := Metadata{
		Repo:        owner + "/" + repo,
		Version:     version,
		Platform:    p,
		BinaryPath:  dest,
		InstallDate: time.Now().UTC(),
		Checksum:    checksum,
	}
	if err := writeJSON(filepath.Join(slot, metadataFile), meta); err != nil {
		return "", errors.Wrap(err, "write cache metadata")
	}

	// Best-effort latest pointer. Symlinks are unavailable in some
	// filesystem and permission contexts; GetLatestCached falls back to a
	// full scan when the link is absent or stale.
	linkPath := filepath.Join(s.root, owner, repo, latestLink)
	_ = os.Remove(linkPath)
	_ = os.Symlink(filepath.Join(version, p.Key()), linkPath)

	return dest, nil
}

// GetCachedBinary returns the cached binary path for a slot, or ok=false
// when the slot is absent, malformed, or its binary is gone. A hit bumps
// the usage sidecar; sidecar write failures do not fail the hit.
func (s *Store) GetCachedBinary(owner, repo, version string, p platform.Platform) (string, bool) {
	slot := s.Path(owner, repo, version, p)
	meta, err := s.readMetadata(slot)
	if err != nil {
		return "", false
	}

	s.touchUsage(slot)
	return meta.BinaryPath, true
}

// GetLatestCached returns the most recently installed cached version for a
// repository and platform, or ok=false when nothing usable is cached. The
// latest symlink is consulted first; a missing or stale link triggers a
// scan of all version directories ordered by install date.
func (s *Store) GetLatestCached(owner, repo string, p platform.Platform) (string, bool) {
	if version, ok := s.latestFromLink(owner, repo, p); ok {
		return version, true
	}
	return s.latestFromScan(owner, repo, p)
}

func (s *Store) latestFromLink(owner, repo string, p platform.Platform) (string, bool) {
	target, err := os.Readlink(filepath.Join(s.root, owner, repo, latestLink))
	if err != nil {
		return "", false
	}

	// Link targets are slot-relative: <version>/<os>-<arch>.
	parts := strings.Split(filepath.ToSlash(target), "/")
	if len(parts) != 2 || parts[1] != p.Key() {
		return "", false
	}

	version := parts[0]
	if !s.IsCached(owner, repo, version, p) {
		return "", false
	}
	return version, true
}

func (s *Store) latestFromScan(owner, repo string, p platform.Platform) (string, bool) {
	repoDir := filepath.Join(s.root, owner, repo)
	entries, err := os.ReadDir(repoDir)
	if err != nil {
		return "", false
	}

	var bestVersion string
	var bestInstall time.Time
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		version := entry.Name()
		meta, err := s.readMetadata(s.Path(owner, repo, version, p))
		if err != nil {
			continue
		}
		if meta.InstallDate.After(bestInstall) {
			bestVersion = version
			bestInstall = meta.InstallDate
		}
	}

	if bestVersion == "" {
		return "", false
	}
	return bestVersion, true
}

// List returns the metadata of every valid cached slot, sorted by
// repository then version. Malformed slots are skipped.
func (s *Store) List() ([]Metadata, error) {
	var out []Metadata

	owners, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read cache root")
	}

	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		repos, err := os.ReadDir(filepath.Join(s.root, owner.Name()))
		if err != nil {
			continue
		}
		for _, repo := range repos {
			if !repo.IsDir() {
				continue
			}
			versions, err := os.ReadDir(filepath.Join(s.root, owner.Name(), repo.Name()))
			if err != nil {
				continue
			}
			for _, version := range versions {
				if !version.IsDir() {
					continue
				}
				versionDir := filepath.Join(s.root, owner.Name(), repo.Name(), version.Name())
				slots, err := os.ReadDir(versionDir)
				if err != nil {
					continue
				}
				for _, slot := range slots {
					if !slot.IsDir() {
						continue
					}
					meta, err := s.readMetadata(filepath.Join(versionDir, slot.Name()))
					if err != nil {
						continue
					}
					out = append(out, meta)
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Repo != out[j].Repo {
			return out[i].Repo < out[j].Repo
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// CleanAll removes every cached slot. The root directory itself is kept.
func (s *Store) CleanAll() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read cache root")
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			return errors.Wrapf(err, "remove %s", entry.Name())
		}
	}
	return nil
}

// Size returns the total size in bytes of all files under the cache root.
// The walk uses an explicit stack rather than recursion.
func (s *Store) Size() (int64, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return 0, nil
	}

	var total int64
	stack := []string{s.root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return 0, errors.Wrapf(err, "read directory %s", dir)
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, path)
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.Mode().IsRegular() {
				total += info.Size()
			}
		}
	}
	return total, nil
}

// readMetadata loads and validates a slot's metadata, then verifies the
// binary it references still exists. Any failure means the slot is not a
// usable cache hit.
func (s *Store) readMetadata(slot string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(slot, metadataFile))
	if err != nil {
		return Metadata{}, errors.Wrap(err, "read cache metadata")
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, errors.Mark(errors.Wrap(err, "parse cache metadata"), ErrInvalidMetadata)
	}
	if meta.Repo == "" || meta.Version == "" || meta.BinaryPath == "" {
		return Metadata{}, errors.Mark(errors.Newf("incomplete cache metadata in %s", slot), ErrInvalidMetadata)
	}

	info, err := os.Stat(meta.BinaryPath)
	if err != nil || !info.Mode().IsRegular() {
		return Metadata{}, errors.Newf("cached binary missing: %s", meta.BinaryPath)
	}
	return meta, nil
}

// touchUsage bumps the hit counter in the slot's sidecar file. Best-effort:
// usage tracking never blocks a cache hit.
func (s *Store) touchUsage(slot string) {
	path := filepath.Join(slot, usageFile)

	var usage Usage
	if data, err := os.ReadFile(path); err == nil {
		// A malformed sidecar is simply reset.
		_ = json.Unmarshal(data, &usage)
	}

	usage.LastUsed = time.Now().UTC()
	usage.UsageCount++
	_ = writeJSON(path, usage)
}

// ReadUsage returns the usage sidecar for a slot. A slot that has never
// been hit reports a zero Usage.
func (s *Store) ReadUsage(owner, repo, version string, p platform.Platform) Usage {
	var usage Usage
	data, err := os.ReadFile(filepath.Join(s.Path(owner, repo, version, p), usageFile))
	if err != nil {
		return usage
	}
	_ = json.Unmarshal(data, &usage)
	return usage
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open source binary %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create cached binary %s", dest)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copy binary to %s", dest)
	}
	return out.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
