// Package verify checks downloaded assets against published checksums and
// GPG detached signatures. Whether a failure blocks caching is the
// resolver's policy decision; this package only reports the outcome.
package verify

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // ProtonMail's maintained fork
	"github.com/cockroachdb/errors"

	"github.com/RosalindThackerByrne/grel/internal/download"
)

// Policy controls what a verification failure does to a resolution.
type Policy string

const (
	// PolicyNone skips verification entirely.
	PolicyNone Policy = "none"
	// PolicyAdvisory runs verification and records the result but never
	// blocks caching.
	PolicyAdvisory Policy = "advisory"
	// PolicyStrict aborts the resolution on any verification failure.
	PolicyStrict Policy = "strict"
)

// ParsePolicy maps a config string to a Policy. Empty means advisory.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(s)) {
	case "":
		return PolicyAdvisory, nil
	case PolicyNone:
		return PolicyNone, nil
	case PolicyAdvisory:
		return PolicyAdvisory, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", errors.Newf("unknown verify policy %q", s)
	}
}

// ErrVerificationFailed marks a checksum mismatch or a bad signature, as
// opposed to infrastructure failures like an unreadable keyring.
var ErrVerificationFailed = errors.New("verification failed")

// Verifier checks assets against checksum files and detached signatures.
// Keyrings live as <name>.gpg files under keyringDir.
type Verifier struct {
	keyringDir string
}

// NewVerifier returns a Verifier reading keyrings from keyringDir.
func NewVerifier(keyringDir string) *Verifier {
	return &Verifier{keyringDir: keyringDir}
}

// VerifyChecksums compares the file's SHA-256 digest against the entry for
// its basename in a sha256sum-format checksum file.
func (v *Verifier) VerifyChecksums(path, checksumPath string) error {
	actual, err := download.Checksum(path)
	if err != nil {
		return errors.Wrap(err, "calculate checksum")
	}

	expected, err := findChecksum(checksumPath, filepath.Base(path))
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, expected) {
		return errors.Mark(
			errors.Newf("checksum mismatch for %s: got %s, published %s", filepath.Base(path), actual, expected),
			ErrVerificationFailed,
		)
	}
	return nil
}

// VerifySignature checks a detached GPG signature over the file using the
// keyring named keyName. Armored signatures are tried first, then binary.
func (v *Verifier) VerifySignature(path, signaturePath, keyName string) error {
	keyring, err := v.loadKeyring(keyName)
	if err != nil {
		return err
	}

	target, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open signed file")
	}
	defer target.Close()

	sig, err := os.Open(signaturePath)
	if err != nil {
		return errors.Wrap(err, "open signature")
	}
	defer sig.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, target, sig, nil)
	if err != nil {
		if _, seekErr := target.Seek(0, io.SeekStart); seekErr != nil {
			return errors.Wrap(seekErr, "rewind signed file")
		}
		if _, seekErr := sig.Seek(0, io.SeekStart); seekErr != nil {
			return errors.Wrap(seekErr, "rewind signature")
		}
		_, err = openpgp.CheckDetachedSignature(keyring, target, sig, nil)
	}
	if err != nil {
		return errors.Mark(errors.Wrap(err, "check signature"), ErrVerificationFailed)
	}
	return nil
}

// loadKeyring reads <keyringDir>/<name>.gpg, accepting armored or binary
// keyring files.
func (v *Verifier) loadKeyring(name string) (openpgp.EntityList, error) {
	path := filepath.Join(v.keyringDir, name+".gpg")

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open keyring %s", path)
	}
	defer file.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(file)
	if err != nil {
		if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
			return nil, errors.Wrap(seekErr, "rewind keyring")
		}
		keyring, err = openpgp.ReadKeyRing(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read keyring %s", path)
		}
	}

	if len(keyring) == 0 {
		return nil, errors.Newf("keyring %s holds no keys", path)
	}
	return keyring, nil
}

// findChecksum scans a sha256sum-format file ("<digest>  <filename>") for
// the entry naming filename, matching the bare name first and then the
// basename of path-qualified entries.
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", errors.Wrap(err, "open checksum file")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		// sha256sum marks binary-mode entries with a leading asterisk.
		entryName := strings.TrimPrefix(parts[1], "*")
		if entryName == filename || filepath.Base(entryName) == filename {
			return parts[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "scan checksum file")
	}

	return "", errors.Newf("no checksum entry for %s", filename)
}
