package download

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnsupportedArchive marks an archive dispatch failure. Unknown
// extensions are an explicit error, never a silent no-op.
var ErrUnsupportedArchive = errors.New("unsupported archive format")

// IsArchive reports whether the filename carries a supported archive
// extension. Non-archive assets (bare binaries) skip extraction entirely.
func IsArchive(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".tar.gz") ||
		strings.HasSuffix(lower, ".tgz") ||
		strings.HasSuffix(lower, ".zip")
}

// ExtractArchive extracts an archive into destDir, dispatching on the file
// extension. The archive's internal directory structure is preserved as-is:
// some distributions ship a top-level wrapper directory and some ship flat
// archives, so nothing is stripped.
func ExtractArchive(archivePath, destDir string) error {
	lower := strings.ToLower(archivePath)

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractTarGz(archivePath, destDir)
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(archivePath, destDir)
	default:
		return errors.Mark(
			errors.Newf("unsupported archive format: %s", filepath.Base(archivePath)),
			ErrUnsupportedArchive,
		)
	}
}

// extractTarGz extracts a gzip-compressed tarball entry by entry.
func extractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "open archive")
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrap(err, "create dest dir")
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read tar header")
		}

		target, err := securePath(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "create directory %s", target)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "create parent dir for %s", target)
			}

			outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode)&0o777)
			if err != nil {
				return errors.Wrapf(err, "create file %s", target)
			}

			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return errors.Wrapf(err, "write file %s", target)
			}
			outFile.Close()

		case tar.TypeSymlink:
			if err := os.Symlink(header.Linkname, target); err != nil {
				return errors.Wrapf(err, "create symlink %s", target)
			}

		default:
			// Skip char devices, block devices, fifos, etc.
			continue
		}
	}

	return nil
}

// extractZip extracts a zip archive entry by entry, creating parent
// directories as needed and streaming each file to disk.
func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, "open zip archive")
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrap(err, "create dest dir")
	}

	for _, file := range reader.File {
		target, err := securePath(destDir, file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "create directory %s", target)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "create parent dir for %s", target)
		}

		mode := file.Mode() & 0o777
		if mode == 0 {
			mode = 0o644
		}
		outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return errors.Wrapf(err, "create file %s", target)
		}

		contents, err := file.Open()
		if err != nil {
			outFile.Close()
			return errors.Wrapf(err, "open zip entry %s", file.Name)
		}

		if _, err := io.Copy(outFile, contents); err != nil {
			contents.Close()
			outFile.Close()
			return errors.Wrapf(err, "write file %s", target)
		}
		contents.Close()
		outFile.Close()
	}

	return nil
}

// securePath joins an archive entry name onto destDir, rejecting entries
// that would escape the destination via path traversal.
func securePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", errors.Newf("illegal file path in archive: %s", name)
	}
	return target, nil
}
