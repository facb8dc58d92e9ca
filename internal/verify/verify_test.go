package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyAdvisory, false},
		{"none", PolicyNone, false},
		{"advisory", PolicyAdvisory, false},
		{"strict", PolicyStrict, false},
		{"STRICT", PolicyStrict, false},
		{"paranoid", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePolicy(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePolicy(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestVerifyChecksums(t *testing.T) {
	dir := t.TempDir()

	payload := filepath.Join(dir, "tool-1.0-linux-x86_64.tar.gz")
	if err := os.WriteFile(payload, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	// sha256("hello world")
	digest := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	tests := []struct {
		name      string
		checksums string
		wantErr   bool
		verifyErr bool // mismatch vs infrastructure failure
	}{
		{
			name:      "plain entry",
			checksums: digest + "  tool-1.0-linux-x86_64.tar.gz\n",
		},
		{
			name:      "path qualified entry",
			checksums: digest + "  ./release/tool-1.0-linux-x86_64.tar.gz\n",
		},
		{
			name:      "binary mode asterisk",
			checksums: digest + " *tool-1.0-linux-x86_64.tar.gz\n",
		},
		{
			name:      "uppercase digest",
			checksums: "B94D27B9934D3E08A52E52D7DA7DABFAC484EFE37A5380EE9088F7ACE2EFCDE9  tool-1.0-linux-x86_64.tar.gz\n",
		},
		{
			name: "mismatched digest",
			checksums: "0000000000000000000000000000000000000000000000000000000000000000" +
				"  tool-1.0-linux-x86_64.tar.gz\n",
			wantErr:   true,
			verifyErr: true,
		},
		{
			name:      "no entry for file",
			checksums: digest + "  some-other-file.tar.gz\n",
			wantErr:   true,
		},
	}

	v := NewVerifier(dir)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checksumPath := filepath.Join(t.TempDir(), "checksums.txt")
			if err := os.WriteFile(checksumPath, []byte(tt.checksums), 0o644); err != nil {
				t.Fatal(err)
			}

			err := v.VerifyChecksums(payload, checksumPath)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.verifyErr != errors.Is(err, ErrVerificationFailed) {
					t.Errorf("verification-failed mark = %v, want %v: %v",
						errors.Is(err, ErrVerificationFailed), tt.verifyErr, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifyChecksumsMissingFile(t *testing.T) {
	v := NewVerifier(t.TempDir())
	if err := v.VerifyChecksums("/nonexistent/file", "/nonexistent/checksums"); err == nil {
		t.Error("expected error")
	}
}

// keyringFixture copies a testdata keyring into a fresh keyring directory
// under the given tool name.
func keyringFixture(t *testing.T, keyFile, keyName string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", keyFile))
	if err != nil {
		t.Fatalf("failed to read test key: %v", err)
	}

	keyringDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(keyringDir, keyName+".gpg"), data, 0o644); err != nil {
		t.Fatalf("failed to write test key: %v", err)
	}
	return keyringDir
}

func TestVerifySignature(t *testing.T) {
	v := NewVerifier(keyringFixture(t, "test-key.gpg", "tool"))

	tests := []struct {
		name          string
		target        string
		signature     string
		keyName       string
		wantErr       bool
		verifyErr     bool // signature rejection vs infrastructure failure
	}{
		{
			name:      "armored signature",
			target:    "testdata/tool.tar.gz",
			signature: "testdata/tool.tar.gz.asc",
			keyName:   "tool",
		},
		{
			name:      "binary signature",
			target:    "testdata/tool.tar.gz",
			signature: "testdata/tool.tar.gz.sig",
			keyName:   "tool",
		},
		{
			name:      "tampered target",
			target:    "testdata/tampered.tar.gz",
			signature: "testdata/tool.tar.gz.asc",
			keyName:   "tool",
			wantErr:   true,
			verifyErr: true,
		},
		{
			name:      "missing signature file",
			target:    "testdata/tool.tar.gz",
			signature: "testdata/nonexistent.asc",
			keyName:   "tool",
			wantErr:   true,
		},
		{
			name:      "missing keyring",
			target:    "testdata/tool.tar.gz",
			signature: "testdata/tool.tar.gz.asc",
			keyName:   "unknown-tool",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.VerifySignature(tt.target, tt.signature, tt.keyName)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.verifyErr != errors.Is(err, ErrVerificationFailed) {
					t.Errorf("verification-failed mark = %v, want %v: %v",
						errors.Is(err, ErrVerificationFailed), tt.verifyErr, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifySignatureWrongKey(t *testing.T) {
	// A keyring holding a different key must reject the signature.
	v := NewVerifier(keyringFixture(t, "other-key.gpg", "tool"))

	err := v.VerifySignature("testdata/tool.tar.gz", "testdata/tool.tar.gz.asc", "tool")
	if err == nil {
		t.Fatal("expected error for signature from a different key")
	}
	if !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("error not marked verification-failed: %v", err)
	}
}
