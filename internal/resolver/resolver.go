// Package resolver turns a repository reference into a locally cached,
// runnable executable. It is the composition root over the release
// provider, platform matcher, downloader, cache store, and registry.
package resolver

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/RosalindThackerByrne/grel/internal/cache"
	"github.com/RosalindThackerByrne/grel/internal/download"
	"github.com/RosalindThackerByrne/grel/internal/platform"
	"github.com/RosalindThackerByrne/grel/internal/registry"
	"github.com/RosalindThackerByrne/grel/internal/release"
	"github.com/RosalindThackerByrne/grel/internal/verify"
)

// Failure taxonomy. Every error leaving Resolve carries exactly one of
// these marks so callers can distinguish a failed fetch from a failed
// commit from bad on-disk state.
var (
	// ErrAcquisition marks failures obtaining a usable binary: provider
	// errors, exhausted download retries, unsupported archives, no
	// matching asset, no executable after extraction.
	ErrAcquisition = errors.New("acquisition failed")

	// ErrPersistence marks filesystem failures while committing a cache
	// slot or registry entry.
	ErrPersistence = errors.New("persistence failed")

	// ErrValidation marks a strict verification failure.
	ErrValidation = errors.New("validation failed")
)

// Ref identifies a repository and an optional pinned version.
type Ref struct {
	Owner   string
	Repo    string
	Version string
}

// Full returns the owner/repo form.
func (r Ref) Full() string {
	return r.Owner + "/" + r.Repo
}

// ParseRef parses "owner/repo" or "owner/repo@version".
func ParseRef(s string) (Ref, error) {
	ref := Ref{}

	rest := s
	if at := strings.Index(s, "@"); at >= 0 {
		rest = s[:at]
		ref.Version = s[at+1:]
		if ref.Version == "" {
			return Ref{}, errors.Newf("reference %q has an empty version", s)
		}
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, errors.Newf("reference %q is not owner/repo[@version]", s)
	}
	ref.Owner, ref.Repo = parts[0], parts[1]
	return ref, nil
}

// Options tunes a single resolution.
type Options struct {
	// Name is the short name the result is registered under. Defaults to
	// the repository name.
	Name string

	// AssetFilter prefers assets whose name contains this substring, for
	// releases shipping several equally scored variants (glibc vs musl).
	AssetFilter string

	// Policy controls whether published checksums and signatures gate the
	// resolution. Default is advisory.
	Policy verify.Policy

	// KeyName selects the GPG keyring for signature checks.
	KeyName string

	// CheckLatest skips the local latest-version fast path and always asks
	// the provider, caching a newer release when one exists.
	CheckLatest bool

	// OnProgress receives download progress updates.
	OnProgress download.ProgressFunc
}

// Result describes a finished resolution.
type Result struct {
	// Path is the cached executable. Guaranteed to exist and, on
	// Unix-like hosts, to be executable.
	Path string

	// Version is the release tag the path was resolved to.
	Version string

	// FromCache reports whether the resolution was served without
	// touching the provider.
	FromCache bool

	// Warnings carries advisory verification failures.
	Warnings []string
}

// Resolver wires the pipeline together for one host platform.
type Resolver struct {
	provider   release.Provider
	store      *cache.Store
	registry   *registry.Registry
	downloader *download.Downloader
	verifier   *verify.Verifier
	platform   platform.Platform
}

// Config assembles a Resolver.
type Config struct {
	Provider   release.Provider
	Store      *cache.Store
	Registry   *registry.Registry
	Downloader *download.Downloader
	Verifier   *verify.Verifier
	Platform   platform.Platform
}

// New returns a Resolver. All collaborators are required except the
// verifier, which is only consulted when a policy asks for it.
func New(cfg Config) (*Resolver, error) {
	if cfg.Provider == nil {
		return nil, errors.New("release provider is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Downloader == nil {
		return nil, errors.New("downloader is required")
	}
	return &Resolver{
		provider:   cfg.Provider,
		store:      cfg.Store,
		registry:   cfg.Registry,
		downloader: cfg.Downloader,
		verifier:   cfg.Verifier,
		platform:   cfg.Platform,
	}, nil
}

// Resolve returns a runnable executable for ref, serving it from the cache
// when possible and otherwise acquiring, verifying, and committing it.
func (r *Resolver) Resolve(ctx context.Context, ref Ref, opts Options) (*Result, error) {
	name := opts.Name
	if name == "" {
		name = ref.Repo
	}
	if opts.Policy == "" {
		opts.Policy = verify.PolicyAdvisory
	}

	if result, ok := r.resolveCached(ref, name, opts); ok {
		return result, nil
	}

	rel, err := r.fetchRelease(ctx, ref)
	if err != nil {
		return nil, err
	}

	// The provider may resolve "latest" to a tag we already hold.
	if ref.Version == "" && r.store.IsCached(ref.Owner, ref.Repo, rel.Tag, r.platform) {
		if path, ok := r.store.GetCachedBinary(ref.Owner, ref.Repo, rel.Tag, r.platform); ok {
			_ = r.registry.TouchEntry(name)
			return &Result{Path: path, Version: rel.Tag, FromCache: true}, nil
		}
	}

	return r.acquire(ctx, ref, name, rel, opts)
}

// resolveCached is the no-network fast path: the requested version when one
// is pinned, otherwise the registry's known version, otherwise the newest
// valid slot.
func (r *Resolver) resolveCached(ref Ref, name string, opts Options) (*Result, bool) {
	version := ref.Version
	if version == "" {
		if opts.CheckLatest {
			return nil, false
		}
		if entry, ok := r.registry.GetEntry(name); ok && entry.Repo == ref.Full() && entry.Platform == r.platform {
			version = entry.Version
		}
	}
	if version == "" {
		var ok bool
		version, ok = r.store.GetLatestCached(ref.Owner, ref.Repo, r.platform)
		if !ok {
			return nil, false
		}
	}

	path, ok := r.store.GetCachedBinary(ref.Owner, ref.Repo, version, r.platform)
	if !ok {
		return nil, false
	}

	_ = r.registry.TouchEntry(name)
	return &Result{Path: path, Version: version, FromCache: true}, true
}

func (r *Resolver) fetchRelease(ctx context.Context, ref Ref) (*release.Release, error) {
	var rel *release.Release
	var err error
	if ref.Version == "" {
		rel, err = r.provider.LatestRelease(ctx, ref.Owner, ref.Repo)
	} else {
		rel, err = r.provider.ReleaseByTag(ctx, ref.Owner, ref.Repo, ref.Version)
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "fetch release for %s", ref.Full()), ErrAcquisition)
	}
	return rel, nil
}

// acquire runs the download half of the pipeline: pick asset, download,
// verify, extract, discover, commit, register, clean up.
func (r *Resolver) acquire(ctx context.Context, ref Ref, name string, rel *release.Release, opts Options) (*Result, error) {
	asset, ok := platform.FindMatchingAsset(filterAssets(rel.Assets, opts.AssetFilter), r.platform)
	if !ok {
		available := platform.AvailablePlatforms(rel.Assets)
		return nil, errors.Mark(
			errors.Newf("release %s of %s has no asset for %s (available: %s)",
				rel.Tag, ref.Full(), r.platform, strings.Join(available, ", ")),
			ErrAcquisition,
		)
	}

	assetPath, err := r.downloader.DownloadAsset(ctx, asset, opts.OnProgress)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "download %s", asset.Name), ErrAcquisition)
	}
	workDir := filepath.Dir(assetPath)
	defer download.Cleanup(workDir)

	warnings, err := r.verifyAsset(ctx, rel, asset, assetPath, opts)
	if err != nil {
		return nil, err
	}

	execPath, err := r.discoverExecutable(assetPath, workDir)
	if err != nil {
		return nil, err
	}

	checksum, err := download.Checksum(execPath)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "checksum executable"), ErrAcquisition)
	}

	cachedPath, err := r.store.CacheBinary(ref.Owner, ref.Repo, rel.Tag, r.platform, execPath, checksum)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "commit cache slot"), ErrPersistence)
	}

	if err := r.registry.AddEntry(name, ref.Full(), rel.Tag, filepath.Base(cachedPath), r.platform); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "record registry entry"), ErrPersistence)
	}

	return &Result{Path: cachedPath, Version: rel.Tag, Warnings: warnings}, nil
}

// discoverExecutable extracts the asset when it is an archive and returns
// the first executable in deterministic walk order; bare assets are the
// executable themselves.
func (r *Resolver) discoverExecutable(assetPath, workDir string) (string, error) {
	if !download.IsArchive(assetPath) {
		if err := download.SetExecutable(assetPath); err != nil {
			return "", errors.Mark(errors.Wrap(err, "mark binary executable"), ErrAcquisition)
		}
		return assetPath, nil
	}

	extractDir := filepath.Join(workDir, "extracted")
	if err := download.ExtractArchive(assetPath, extractDir); err != nil {
		return "", errors.Mark(errors.Wrap(err, "extract archive"), ErrAcquisition)
	}

	executables, err := download.FindExecutables(extractDir)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "discover executables"), ErrAcquisition)
	}
	if len(executables) == 0 {
		return "", errors.Mark(
			errors.Newf("no executable found in %s", filepath.Base(assetPath)),
			ErrAcquisition,
		)
	}
	return executables[0], nil
}

// verifyAsset checks the downloaded asset against the release's published
// checksum and signature companions, honoring the policy: strict failures
// abort, advisory failures become warnings, none skips entirely.
func (r *Resolver) verifyAsset(ctx context.Context, rel *release.Release, asset platform.Asset, assetPath string, opts Options) ([]string, error) {
	if opts.Policy == verify.PolicyNone || r.verifier == nil {
		return nil, nil
	}

	var warnings []string

	// Strict aborts on the first failure; advisory collects it and keeps
	// checking.
	report := func(err error, what string) error {
		if opts.Policy == verify.PolicyStrict {
			return errors.Mark(errors.Wrapf(err, "%s for %s", what, asset.Name), ErrValidation)
		}
		warnings = append(warnings, what+": "+err.Error())
		return nil
	}

	if checksumAsset, ok := findChecksumAsset(rel.Assets, asset.Name); ok {
		checksumPath, err := r.downloader.DownloadAsset(ctx, checksumAsset, nil)
		if err != nil {
			if err := report(err, "checksum file download failed"); err != nil {
				return nil, err
			}
		} else {
			defer download.Cleanup(filepath.Dir(checksumPath))
			if err := r.verifier.VerifyChecksums(assetPath, checksumPath); err != nil {
				if err := report(err, "checksum verification failed"); err != nil {
					return nil, err
				}
			}
		}
	} else if opts.Policy == verify.PolicyStrict {
		return nil, errors.Mark(
			errors.Newf("release %s publishes no checksum file", rel.Tag),
			ErrValidation,
		)
	}

	if opts.KeyName != "" {
		if err := r.verifySignature(ctx, rel, asset, assetPath, opts.KeyName); err != nil {
			if err := report(err, "signature verification failed"); err != nil {
				return nil, err
			}
		}
	}

	return warnings, nil
}

// verifySignature downloads the asset's detached signature companion and
// checks it against the named keyring.
func (r *Resolver) verifySignature(ctx context.Context, rel *release.Release, asset platform.Asset, assetPath, keyName string) error {
	sigAsset, ok := findSignatureAsset(rel.Assets, asset.Name)
	if !ok {
		return errors.Newf("release %s publishes no signature for %s", rel.Tag, asset.Name)
	}

	sigPath, err := r.downloader.DownloadAsset(ctx, sigAsset, nil)
	if err != nil {
		return errors.Wrap(err, "download signature")
	}
	defer download.Cleanup(filepath.Dir(sigPath))

	return r.verifier.VerifySignature(assetPath, sigPath, keyName)
}

// filterAssets narrows the asset list to names containing the filter,
// falling back to the full list when nothing matches.
func filterAssets(assets []platform.Asset, filter string) []platform.Asset {
	if filter == "" {
		return assets
	}

	var filtered []platform.Asset
	lower := strings.ToLower(filter)
	for _, asset := range assets {
		if strings.Contains(strings.ToLower(asset.Name), lower) {
			filtered = append(filtered, asset)
		}
	}
	if len(filtered) == 0 {
		return assets
	}
	return filtered
}

// findChecksumAsset locates the checksum companion for an asset: a
// per-asset .sha256 file when one is published, otherwise a release-wide
// checksums file.
func findChecksumAsset(assets []platform.Asset, assetName string) (platform.Asset, bool) {
	for _, asset := range assets {
		if asset.Name == assetName+".sha256" || asset.Name == assetName+".sha256sum" {
			return asset, true
		}
	}
	for _, asset := range assets {
		lower := strings.ToLower(asset.Name)
		if strings.Contains(lower, "checksums") || strings.Contains(lower, "sha256sums") {
			return asset, true
		}
	}
	return platform.Asset{}, false
}

// findSignatureAsset locates the detached signature published for an asset.
func findSignatureAsset(assets []platform.Asset, assetName string) (platform.Asset, bool) {
	for _, asset := range assets {
		if asset.Name == assetName+".asc" || asset.Name == assetName+".sig" {
			return asset, true
		}
	}
	return platform.Asset{}, false
}
