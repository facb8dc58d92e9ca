// Package testutil provides utilities for testing grel in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points every grel directory at a per-test temp location so
// tests never touch the user's real cache, registry, or pin file, and strips
// credentials so nothing reaches the network authenticated.
//
// Cleanup is handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	t.Setenv("GREL_CACHE_DIR", filepath.Join(tmpDir, "cache"))
	t.Setenv("GREL_CONFIG_DIR", filepath.Join(tmpDir, "config"))
	t.Setenv("GREL_DATA_DIR", filepath.Join(tmpDir, "data"))

	// Tests must never pick up the developer's token.
	t.Setenv("GITHUB_TOKEN", "")

	dirs := []string{
		filepath.Join(tmpDir, "cache"),
		filepath.Join(tmpDir, "config"),
		filepath.Join(tmpDir, "data"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	return tmpDir
}
