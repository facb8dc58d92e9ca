// Package registry tracks the "current known install" for each binary
// short name in a single registry.json document.
//
// The document is loaded once per Registry and memoized. Loading never
// fails: a corrupt document falls back to the .backup copy, and a corrupt
// backup falls back to a freshly initialized empty document that is
// persisted immediately. Saves are crash-safe: backup, temp write,
// re-parse, atomic rename, in that order.
package registry

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/RosalindThackerByrne/grel/internal/platform"
)

const (
	// SchemaVersion tags the registry.json document format.
	SchemaVersion = 1

	registryFile = "registry.json"
	backupSuffix = ".backup"
)

// ErrEntryNotFound marks a lookup or removal of a name the registry does
// not hold.
var ErrEntryNotFound = errors.New("registry entry not found")

// Entry records the current known install for one short name.
type Entry struct {
	Repo        string            `json:"repo"`
	BinaryName  string            `json:"binaryName"`
	Version     string            `json:"version"`
	InstallDate time.Time         `json:"installDate"`
	LastUsed    time.Time         `json:"lastUsed"`
	Platform    platform.Platform `json:"platform"`
}

// valid reports whether the entry carries every required field.
func (e Entry) valid() bool {
	return e.Repo != "" && e.BinaryName != "" && e.Version != "" &&
		e.Platform.OS != "" && e.Platform.Arch != ""
}

// Document is the on-disk registry shape.
type Document struct {
	Version     int              `json:"version"`
	Entries     map[string]Entry `json:"entries"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// Registry owns one registry.json file and its memoized in-process copy.
type Registry struct {
	path string
	doc  *Document

	// renameFile commits the temp file over the target. Replaced in tests
	// to exercise the failure path.
	renameFile func(oldpath, newpath string) error
}

// New returns a Registry stored under dir as registry.json.
func New(dir string) *Registry {
	return &Registry{
		path:       filepath.Join(dir, registryFile),
		renameFile: os.Rename,
	}
}

// Path returns the registry file location.
func (r *Registry) Path() string {
	return r.path
}

// Load returns the registry document, reading it from disk on first use.
// It never fails: an unreadable or invalid document is recovered from the
// backup, and a bad backup reinitializes an empty document.
func (r *Registry) Load() *Document {
	if r.doc != nil {
		return r.doc
	}

	if doc, err := readDocument(r.path); err == nil {
		r.doc = doc
		return r.doc
	}

	if doc, err := readDocument(r.path + backupSuffix); err == nil {
		r.doc = doc
		// Persist the recovered document back to the primary path. A
		// failure here leaves the backup as the source of truth.
		_ = r.Save()
		return r.doc
	}

	r.doc = emptyDocument()
	_ = r.Save()
	return r.doc
}

// invalidate drops the memoized document so the next Load rereads disk.
func (r *Registry) invalidate() {
	r.doc = nil
}

// Save writes the current document to disk. Order: copy the existing file
// to .backup, write a uniquely named temp file, re-parse the temp file,
// then atomically rename it over the target. Any failure before the rename
// removes the temp file and leaves the prior document and backup intact.
func (r *Registry) Save() error {
	doc := r.Load()
	doc.LastUpdated = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return errors.Wrap(err, "create registry directory")
	}

	if _, err := os.Stat(r.path); err == nil {
		if err := copyFile(r.path, r.path+backupSuffix); err != nil {
			return errors.Wrap(err, "back up registry")
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal registry")
	}

	tempPath := filepath.Join(filepath.Dir(r.path), "registry-"+uuid.NewString()+".tmp")
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "write registry temp file")
	}

	// Re-parse before committing. A document that cannot be read back must
	// never replace a valid one.
	if _, err := readDocument(tempPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "verify registry temp file")
	}

	if err := r.renameFile(tempPath, r.path); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "commit registry")
	}
	return nil
}

// AddEntry records an install under name. When the repository's trailing
// segment differs from name, the same entry is stored under that alias as
// well, so "owner/tool" installed as "mytool" is also reachable as "tool".
func (r *Registry) AddEntry(name, repo, version, binaryName string, p platform.Platform) error {
	doc := r.Load()

	now := time.Now().UTC()
	entry := Entry{
		Repo:        repo,
		BinaryName:  binaryName,
		Version:     version,
		InstallDate: now,
		LastUsed:    now,
		Platform:    p,
	}

	doc.Entries[name] = entry
	if alias := shortName(repo); alias != "" && alias != name {
		doc.Entries[alias] = entry
	}

	return r.Save()
}

// RemoveEntry deletes the entry stored under name. The repo-derived alias
// is deleted only while it still points at the same entry; an alias that
// has since been reassigned to a different binary is left alone.
func (r *Registry) RemoveEntry(name string) error {
	doc := r.Load()

	entry, ok := doc.Entries[name]
	if !ok {
		return errors.Mark(errors.Newf("no registry entry named %s", name), ErrEntryNotFound)
	}
	delete(doc.Entries, name)

	if alias := shortName(entry.Repo); alias != "" && alias != name {
		if current, ok := doc.Entries[alias]; ok && current == entry {
			delete(doc.Entries, alias)
		}
	}

	return r.Save()
}

// GetEntry returns the entry stored under name.
func (r *Registry) GetEntry(name string) (Entry, bool) {
	entry, ok := r.Load().Entries[name]
	return entry, ok
}

// TouchEntry updates LastUsed on a cache hit. Unknown names are ignored:
// hit tracking never fails a resolution.
func (r *Registry) TouchEntry(name string) error {
	doc := r.Load()

	entry, ok := doc.Entries[name]
	if !ok {
		return nil
	}
	entry.LastUsed = time.Now().UTC()
	doc.Entries[name] = entry

	return r.Save()
}

// Repair drops entries missing required fields and returns how many were
// removed. A repair that removed nothing does not rewrite the file.
func (r *Registry) Repair() (int, error) {
	doc := r.Load()

	removed := 0
	for name, entry := range doc.Entries {
		if !entry.valid() {
			delete(doc.Entries, name)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, r.Save()
}

// RestoreFromBackup replaces the current document with the backup copy.
// This is the explicit manual form of the fallback Load performs on its
// own when the primary document is corrupt.
func (r *Registry) RestoreFromBackup() error {
	doc, err := readDocument(r.path + backupSuffix)
	if err != nil {
		return errors.Wrap(err, "read registry backup")
	}

	r.doc = doc
	return r.Save()
}

// readDocument reads and structurally validates a registry document.
func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read registry")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse registry")
	}
	if doc.Version < 1 {
		return nil, errors.Newf("unsupported registry schema version %d", doc.Version)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]Entry)
	}
	return &doc, nil
}

func emptyDocument() *Document {
	return &Document{
		Version: SchemaVersion,
		Entries: make(map[string]Entry),
	}
}

// shortName returns the trailing segment of an owner/repo reference.
func shortName(repo string) string {
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		return repo[i+1:]
	}
	return repo
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copy to %s", dest)
	}
	return out.Close()
}
