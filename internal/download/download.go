// Package download fetches release assets over HTTP with retry and
// backoff, extracts archives, computes checksums, and discovers executable
// files in extracted trees.
//
// Everything here works on temporary paths owned by the caller's download
// cycle; committing a binary into the cache is the cache package's job.
package download

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/RosalindThackerByrne/grel/internal/platform"
)

const (
	// DefaultTimeout is the default per-request HTTP timeout.
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the default number of download attempts.
	DefaultRetries = 3
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "grel/1.0"
)

// ErrRetriesExhausted marks a download that failed every attempt.
var ErrRetriesExhausted = errors.New("download retries exhausted")

// Progress describes the state of an in-flight download. Total is zero when
// the remote does not report a size, in which case no progress is emitted.
type Progress struct {
	Downloaded     int64
	Total          int64
	Percentage     float64
	BytesPerSecond float64
}

// ProgressFunc receives progress updates per received chunk.
type ProgressFunc func(Progress)

// Downloader streams remote assets to temporary files with retry logic.
type Downloader struct {
	client    *http.Client
	tempRoot  string
	userAgent string
	retries   int

	// backoffUnit is the base for the 2^attempt backoff. Always one
	// second outside of tests.
	backoffUnit time.Duration
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithRetries sets the number of download attempts.
func WithRetries(n int) Option {
	return func(d *Downloader) { d.retries = n }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Downloader) { d.client.Timeout = timeout }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) { d.userAgent = ua }
}

// NewDownloader creates a downloader that places temporary download
// directories under tempRoot.
func NewDownloader(tempRoot string, opts ...Option) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		tempRoot:    tempRoot,
		userAgent:   DefaultUserAgent,
		retries:     DefaultRetries,
		backoffUnit: time.Second,
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadAsset streams the asset into a fresh temporary directory and
// returns the path of the downloaded file. The caller owns the temporary
// directory and is responsible for cleaning it up after a successful
// download; on terminal failure the directory is removed here.
//
// Failed attempts are retried with exponential backoff: the wait after
// attempt n is 2^n seconds, so intervals strictly increase. The context
// cancels the in-flight request and aborts the backoff wait.
func (d *Downloader) DownloadAsset(ctx context.Context, asset platform.Asset, onProgress ProgressFunc) (string, error) {
	tempDir := filepath.Join(d.tempRoot, "grel-dl-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create download directory")
	}

	dest := filepath.Join(tempDir, filepath.Base(asset.Name))
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<uint(attempt-1)) * d.backoffUnit
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				os.RemoveAll(tempDir)
				return "", ctx.Err()
			}
		}

		err := d.downloadOnce(ctx, asset, dest, start, onProgress)
		if err == nil {
			return dest, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	os.RemoveAll(tempDir)
	return "", errors.Mark(
		errors.Wrapf(lastErr, "download of %s failed after %d attempts", asset.Name, d.retries),
		ErrRetriesExhausted,
	)
}

// downloadOnce performs a single download attempt into dest, truncating any
// partial file from a previous attempt.
func (d *Downloader) downloadOnce(ctx context.Context, asset platform.Asset, dest string, start time.Time, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("unexpected status code: %d", resp.StatusCode)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "create download file")
	}

	var body io.Reader = resp.Body
	total := resp.ContentLength
	if total <= 0 {
		total = asset.Size
	}
	if onProgress != nil && total > 0 {
		body = &progressReader{
			r:          resp.Body,
			total:      total,
			start:      start,
			onProgress: onProgress,
		}
	}

	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return errors.Wrap(err, "copy response body")
	}

	if err := out.Close(); err != nil {
		return errors.Wrap(err, "close download file")
	}
	return nil
}

// progressReader reports progress per chunk, deriving throughput from
// wall-clock time elapsed since the download call began.
type progressReader struct {
	r          io.Reader
	downloaded int64
	total      int64
	start      time.Time
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)

		elapsed := time.Since(pr.start).Seconds()
		var rate float64
		if elapsed > 0 {
			rate = float64(pr.downloaded) / elapsed
		}

		pr.onProgress(Progress{
			Downloaded:     pr.downloaded,
			Total:          pr.total,
			Percentage:     float64(pr.downloaded) / float64(pr.total) * 100,
			BytesPerSecond: rate,
		})
	}
	return n, err
}

// Cleanup removes the given files or directories and any parent directories
// left empty by the removal. Failures are swallowed: this is a hygiene
// operation, not part of the success contract.
func Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		_ = os.RemoveAll(path)

		for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
			entries, err := os.ReadDir(dir)
			if err != nil || len(entries) > 0 {
				break
			}
			if err := os.Remove(dir); err != nil {
				break
			}
		}
	}
}
