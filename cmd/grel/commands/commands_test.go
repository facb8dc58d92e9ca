package commands

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/RosalindThackerByrne/grel/internal/cache"
	"github.com/RosalindThackerByrne/grel/internal/config"
	"github.com/RosalindThackerByrne/grel/internal/platform"
	"github.com/RosalindThackerByrne/grel/internal/registry"
	"github.com/RosalindThackerByrne/grel/internal/testutil"
	"github.com/RosalindThackerByrne/grel/internal/verify"
)

var linuxAmd64 = platform.Platform{OS: platform.OSLinux, Arch: platform.ArchX8664}

func TestResolveTargetRawReference(t *testing.T) {
	a := &app{config: &config.Config{}}

	ref, opts, err := a.resolveTarget("sharkdp/fd@v10.2.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Owner != "sharkdp" || ref.Repo != "fd" || ref.Version != "v10.2.0" {
		t.Errorf("ref = %+v", ref)
	}
	if opts.Name != "" {
		t.Errorf("raw reference should not set a name, got %q", opts.Name)
	}
}

func TestResolveTargetPin(t *testing.T) {
	a := &app{
		config: &config.Config{
			Pins: []config.Pin{{
				Name:    "rg",
				Repo:    "BurntSushi/ripgrep",
				Version: "14.1.1",
				Asset:   "musl",
				Verify:  "strict",
				Key:     "burntsushi",
			}},
		},
	}

	ref, opts, err := a.resolveTarget("rg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Full() != "BurntSushi/ripgrep" || ref.Version != "14.1.1" {
		t.Errorf("ref = %+v", ref)
	}
	if opts.Name != "rg" || opts.AssetFilter != "musl" || opts.KeyName != "burntsushi" {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Policy != verify.PolicyStrict {
		t.Errorf("policy = %q, want strict", opts.Policy)
	}
}

func TestResolveTargetRegistryFallback(t *testing.T) {
	testutil.SetupTestEnv(t)

	reg := registry.New(t.TempDir())
	if err := reg.AddEntry("fd", "sharkdp/fd", "v10.2.0", "fd", linuxAmd64); err != nil {
		t.Fatal(err)
	}

	a := &app{config: &config.Config{}, registry: reg}
	ref, opts, err := a.resolveTarget("fd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Full() != "sharkdp/fd" {
		t.Errorf("ref = %+v", ref)
	}
	if opts.Name != "fd" {
		t.Errorf("name = %q", opts.Name)
	}
}

func TestResolveTargetUnknownName(t *testing.T) {
	testutil.SetupTestEnv(t)

	a := &app{config: &config.Config{}, registry: registry.New(t.TempDir())}
	if _, _, err := a.resolveTarget("nothing"); err == nil {
		t.Fatal("expected error for unknown bare name")
	}
}

func TestCacheDirPrecedence(t *testing.T) {
	testutil.SetupTestEnv(t)

	envDir := os.Getenv("GREL_CACHE_DIR")
	cfg := &config.Config{Options: config.Options{CacheDir: "/from/config"}}

	// Environment beats the pin file.
	if got := cacheDir(cfg); got != envDir {
		t.Errorf("cacheDir = %q, want %q", got, envDir)
	}

	// The flag beats everything.
	cacheDirFlag = "/from/flag"
	defer func() { cacheDirFlag = "" }()
	if got := cacheDir(cfg); got != "/from/flag" {
		t.Errorf("cacheDir = %q, want /from/flag", got)
	}
}

func TestWriteList(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entries := []cache.Metadata{
		{Repo: "sharkdp/fd", Version: "v10.1.0", Platform: linuxAmd64, InstallDate: now},
		{Repo: "sharkdp/fd", Version: "v10.2.0", Platform: linuxAmd64, InstallDate: now},
		{Repo: "BurntSushi/ripgrep", Version: "14.1.1", Platform: linuxAmd64, InstallDate: now},
	}
	doc := &registry.Document{Entries: map[string]registry.Entry{
		"rg": {Repo: "BurntSushi/ripgrep", Version: "14.1.1", Platform: linuxAmd64},
	}}

	var buf bytes.Buffer
	if err := writeList(&buf, entries, doc); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "rg") || !strings.Contains(lines[1], "14.1.1") {
		t.Errorf("first row should be the named ripgrep entry: %q", lines[1])
	}
	// Versions of the same repo sort newest first.
	if !strings.Contains(lines[2], "v10.2.0") || !strings.Contains(lines[3], "v10.1.0") {
		t.Errorf("fd versions out of order:\n%s", buf.String())
	}
}

func TestWriteListEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeList(&buf, nil, &registry.Document{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "nothing cached") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestCanonicalVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"v10.2.0", "v10.2.0"},
		{"14.1.1", "v14.1.1"},
		{"nightly", "v0.0.0"},
	}
	for _, tt := range tests {
		if got := canonicalVersion(tt.in); got != tt.want {
			t.Errorf("canonicalVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.in); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
