// Package release fetches release metadata from a remote provider. The
// Provider interface is the seam the resolver depends on; the GitHub
// implementation wraps the go-github SDK.
package release

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v67/github"

	"github.com/RosalindThackerByrne/grel/internal/platform"
)

var (
	// ErrNotFound marks a repository or release tag the provider does not
	// know. Surfaced distinctly so callers can report a bad reference
	// instead of a transient failure.
	ErrNotFound = errors.New("release not found")

	// ErrRateLimited marks a provider rate-limit rejection. Retrying
	// immediately is pointless; callers should report and stop.
	ErrRateLimited = errors.New("release provider rate limited")
)

// Release is one published release: a tag plus its downloadable assets.
type Release struct {
	Tag    string
	Assets []platform.Asset
}

// Provider fetches release metadata for a repository.
type Provider interface {
	// LatestRelease returns the most recent published release.
	LatestRelease(ctx context.Context, owner, repo string) (*Release, error)
	// ReleaseByTag returns the release published under an exact tag.
	ReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error)
}

// GitHubProvider implements Provider against the GitHub releases API.
type GitHubProvider struct {
	client *github.Client
}

// Option configures a GitHubProvider.
type Option func(*GitHubProvider)

// WithToken authenticates API requests. Anonymous access works but is
// rate-limited aggressively.
func WithToken(token string) Option {
	return func(p *GitHubProvider) {
		if token != "" {
			p.client = p.client.WithAuthToken(token)
		}
	}
}

// WithClient replaces the underlying SDK client. Used by tests to point
// the provider at a local server.
func WithClient(client *github.Client) Option {
	return func(p *GitHubProvider) {
		p.client = client
	}
}

// NewGitHubProvider returns a Provider backed by the GitHub API.
func NewGitHubProvider(opts ...Option) *GitHubProvider {
	p := &GitHubProvider{client: github.NewClient(nil)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LatestRelease returns the most recent published release for owner/repo.
func (p *GitHubProvider) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	rel, resp, err := p.client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, wrapAPIError(err, resp, "fetch latest release for %s/%s", owner, repo)
	}
	return convertRelease(rel), nil
}

// ReleaseByTag returns the release published under tag for owner/repo.
func (p *GitHubProvider) ReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error) {
	rel, resp, err := p.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return nil, wrapAPIError(err, resp, "fetch release %s for %s/%s", tag, owner, repo)
	}
	return convertRelease(rel), nil
}

func convertRelease(rel *github.RepositoryRelease) *Release {
	out := &Release{Tag: rel.GetTagName()}
	for _, asset := range rel.Assets {
		out.Assets = append(out.Assets, platform.Asset{
			Name:        asset.GetName(),
			DownloadURL: asset.GetBrowserDownloadURL(),
			Size:        int64(asset.GetSize()),
		})
	}
	return out
}

// wrapAPIError classifies SDK errors so not-found and rate-limited are
// distinguishable from transient network failures.
func wrapAPIError(err error, resp *github.Response, format string, args ...any) error {
	wrapped := errors.Wrapf(err, format, args...)

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return errors.Mark(wrapped, ErrRateLimited)
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		statusCode = ghErr.Response.StatusCode
	}

	switch statusCode {
	case 404:
		return errors.Mark(wrapped, ErrNotFound)
	case 429:
		return errors.Mark(wrapped, ErrRateLimited)
	}
	return wrapped
}
