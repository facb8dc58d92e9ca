package download

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func mustWrite(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), mode); err != nil {
		t.Fatal(err)
	}
}

func TestFindExecutables(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission semantics")
	}

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "tool"), 0o755)
	mustWrite(t, filepath.Join(root, "README.md"), 0o755)
	mustWrite(t, filepath.Join(root, "install.sh"), 0o755)
	mustWrite(t, filepath.Join(root, "LICENSE"), 0o755)
	mustWrite(t, filepath.Join(root, "data.json"), 0o644)
	mustWrite(t, filepath.Join(root, "bin", "helper"), 0o755)

	got, err := FindExecutables(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		filepath.Join(root, "tool"),
		filepath.Join(root, "bin", "helper"),
	}
	if len(got) != len(want) {
		t.Fatalf("executables = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("executables[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFindExecutablesDeterministicOrder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission semantics")
	}

	root := t.TempDir()
	// Top-level files come before subdirectory contents, and siblings are
	// visited in name order.
	mustWrite(t, filepath.Join(root, "zz-tool"), 0o755)
	mustWrite(t, filepath.Join(root, "aa-tool"), 0o755)
	mustWrite(t, filepath.Join(root, "b-dir", "inner"), 0o755)
	mustWrite(t, filepath.Join(root, "a-dir", "inner"), 0o755)

	got, err := FindExecutables(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		filepath.Join(root, "aa-tool"),
		filepath.Join(root, "zz-tool"),
		filepath.Join(root, "a-dir", "inner"),
		filepath.Join(root, "b-dir", "inner"),
	}
	if len(got) != len(want) {
		t.Fatalf("executables = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("executables[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFindExecutablesPromotesBareBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission semantics")
	}

	root := t.TempDir()
	// Extensionless and .bin files without an execute bit get promoted;
	// a .txt file without one does not.
	mustWrite(t, filepath.Join(root, "tool"), 0o644)
	mustWrite(t, filepath.Join(root, "payload.bin"), 0o644)
	mustWrite(t, filepath.Join(root, "notes.txt"), 0o644)

	got, err := FindExecutables(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("executables = %v, want tool and payload.bin", got)
	}

	for _, path := range got {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Errorf("%s was collected but not made executable", path)
		}
	}
}

func TestSetExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission semantics")
	}

	root := t.TempDir()
	path := filepath.Join(root, "tool")
	mustWrite(t, path, 0o644)

	if err := SetExecutable(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 0755", info.Mode().Perm())
	}

	if err := SetExecutable(filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
