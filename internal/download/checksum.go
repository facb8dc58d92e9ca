package download

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// Checksum returns the hex-encoded SHA-256 digest of the file at path,
// computed in a streaming pass. The digest is advisory integrity metadata:
// whether a mismatch against a published checksum blocks caching is a
// policy decision of the resolver, not of this primitive.
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open file for checksum")
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", errors.Wrap(err, "hash file")
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
