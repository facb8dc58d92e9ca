package platform

import (
	"reflect"
	"testing"
)

var linuxAmd64 = Platform{OS: OSLinux, Arch: ArchX8664}

func TestFindMatchingAsset(t *testing.T) {
	tests := []struct {
		name     string
		assets   []Asset
		platform Platform
		want     string
		wantOK   bool
	}{
		{
			name: "prefers_binary_over_source_archive",
			assets: []Asset{
				{Name: "pkg-1.0-x86_64-unknown-linux-gnu.tar.gz"},
				{Name: "source.tar.gz"},
			},
			platform: linuxAmd64,
			want:     "pkg-1.0-x86_64-unknown-linux-gnu.tar.gz",
			wantOK:   true,
		},
		{
			name:     "empty_asset_list",
			assets:   nil,
			platform: linuxAmd64,
			wantOK:   false,
		},
		{
			name: "all_assets_excluded",
			assets: []Asset{
				{Name: "source.tar.gz"},
				{Name: "pkg-1.0-SHA256SUMS"},
				{Name: "pkg-1.0-linux-x86_64.tar.gz.sig"},
			},
			platform: linuxAmd64,
			wantOK:   false,
		},
		{
			name: "os_match_is_mandatory",
			assets: []Asset{
				{Name: "pkg-1.0-x86_64.tar.gz"},
			},
			platform: linuxAmd64,
			wantOK:   false,
		},
		{
			name: "arch_match_beats_os_only_match",
			assets: []Asset{
				{Name: "pkg-1.0-aarch64-linux.tar.gz"},
				{Name: "pkg-1.0-x86_64-linux.tar.gz"},
			},
			platform: linuxAmd64,
			want:     "pkg-1.0-x86_64-linux.tar.gz",
			wantOK:   true,
		},
		{
			name: "tar_gz_preferred_over_zip",
			assets: []Asset{
				{Name: "pkg-1.0-linux-x86_64.zip"},
				{Name: "pkg-1.0-linux-x86_64.tar.gz"},
			},
			platform: linuxAmd64,
			want:     "pkg-1.0-linux-x86_64.tar.gz",
			wantOK:   true,
		},
		{
			name: "debug_build_penalized",
			assets: []Asset{
				{Name: "pkg-1.0-linux-x86_64-debug.tar.gz"},
				{Name: "pkg-1.0-linux-x86_64.tar.gz"},
			},
			platform: linuxAmd64,
			want:     "pkg-1.0-linux-x86_64.tar.gz",
			wantOK:   true,
		},
		{
			name: "darwin_alias_macos",
			assets: []Asset{
				{Name: "pkg-1.0-macos-arm64.tar.gz"},
			},
			platform: Platform{OS: OSDarwin, Arch: ArchAarch64},
			want:     "pkg-1.0-macos-arm64.tar.gz",
			wantOK:   true,
		},
		{
			name: "windows_zip",
			assets: []Asset{
				{Name: "pkg-1.0-windows-amd64.zip"},
				{Name: "pkg-1.0-linux-amd64.tar.gz"},
			},
			platform: Platform{OS: OSWindows, Arch: ArchX8664},
			want:     "pkg-1.0-windows-amd64.zip",
			wantOK:   true,
		},
		{
			name: "arm_token_does_not_match_darwin",
			assets: []Asset{
				{Name: "pkg-1.0-darwin-x86_64.tar.gz"},
			},
			platform: Platform{OS: OSLinux, Arch: ArchArmv7},
			wantOK:   false,
		},
		{
			name: "x86_token_does_not_match_x86_64_for_i686",
			assets: []Asset{
				{Name: "pkg-1.0-linux-x86_64.tar.gz"},
				{Name: "pkg-1.0-linux-x86.tar.gz"},
			},
			platform: Platform{OS: OSLinux, Arch: ArchI686},
			want:     "pkg-1.0-linux-x86.tar.gz",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindMatchingAsset(tt.assets, tt.platform)

			if ok != tt.wantOK {
				t.Fatalf("FindMatchingAsset ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Name != tt.want {
				t.Errorf("FindMatchingAsset = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestFindMatchingAssetTieBreak(t *testing.T) {
	// Two synthetic entries scoring identically: same OS token, same arch
	// token, same archive extension. The first in list order must win.
	assets := []Asset{
		{Name: "alpha-linux-x86_64.tar.gz", DownloadURL: "https://example.com/alpha"},
		{Name: "omega-linux-x86_64.tar.gz", DownloadURL: "https://example.com/omega"},
	}

	sa := ScoreAsset(assets[0].Name, linuxAmd64)
	sb := ScoreAsset(assets[1].Name, linuxAmd64)
	if sa != sb {
		t.Fatalf("test expects equal scores, got %d and %d", sa, sb)
	}

	got, ok := FindMatchingAsset(assets, linuxAmd64)
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Name != "alpha-linux-x86_64.tar.gz" {
		t.Errorf("tie not broken by list order: got %q", got.Name)
	}

	// Order reversed, the other asset wins.
	reversed := []Asset{assets[1], assets[0]}
	got, _ = FindMatchingAsset(reversed, linuxAmd64)
	if got.Name != "omega-linux-x86_64.tar.gz" {
		t.Errorf("tie not broken by list order after reversal: got %q", got.Name)
	}
}

func TestIsSupported(t *testing.T) {
	assets := []Asset{
		{Name: "pkg-1.0-linux-x86_64.tar.gz"},
	}

	if !IsSupported(assets, linuxAmd64) {
		t.Error("expected linux/x86_64 to be supported")
	}
	if IsSupported(assets, Platform{OS: OSDarwin, Arch: ArchAarch64}) {
		t.Error("expected darwin/aarch64 to be unsupported")
	}
}

func TestAvailablePlatforms(t *testing.T) {
	tests := []struct {
		name   string
		assets []Asset
		want   []string
	}{
		{
			name: "mixed_release",
			assets: []Asset{
				{Name: "pkg-1.0-linux-x86_64.tar.gz"},
				{Name: "pkg-1.0-darwin-arm64.tar.gz"},
				{Name: "pkg-1.0-windows-amd64.zip"},
				{Name: "pkg-1.0-SHA256SUMS"},
			},
			want: []string{"darwin-aarch64", "linux-x86_64", "windows-x86_64"},
		},
		{
			name: "rust_style_triples",
			assets: []Asset{
				{Name: "pkg-1.0-x86_64-unknown-linux-gnu.tar.gz"},
				{Name: "pkg-1.0-aarch64-apple-darwin.tar.gz"},
			},
			want: []string{"darwin-aarch64", "linux-x86_64"},
		},
		{
			name:   "no_assets",
			assets: nil,
			want:   []string{},
		},
		{
			name: "checksums_ignored",
			assets: []Asset{
				{Name: "checksums-linux-x86_64.txt"},
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AvailablePlatforms(tt.assets)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AvailablePlatforms = %v, want %v", got, tt.want)
			}
		})
	}
}
