package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"

	"github.com/RosalindThackerByrne/grel/internal/cache"
	"github.com/RosalindThackerByrne/grel/internal/config"
	"github.com/RosalindThackerByrne/grel/internal/download"
	"github.com/RosalindThackerByrne/grel/internal/platform"
	"github.com/RosalindThackerByrne/grel/internal/registry"
	"github.com/RosalindThackerByrne/grel/internal/release"
	"github.com/RosalindThackerByrne/grel/internal/resolver"
	"github.com/RosalindThackerByrne/grel/internal/verify"
)

// app assembles the pipeline for one CLI invocation.
type app struct {
	resolver *resolver.Resolver
	store    *cache.Store
	registry *registry.Registry
	config   *config.Config
	platform platform.Platform
}

// newApp detects the host platform, loads the pin file, and wires the
// resolver.
func newApp(ctx context.Context) (*app, error) {
	detector := platform.NewDetector()
	host, err := detector.Detect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "detect host platform")
	}

	parser := config.NewParser(detector)
	cfg, err := parser.ParseFile(ctx, pinFile())
	if err != nil {
		return nil, errors.Wrap(err, "load pin file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate pin file")
	}

	cacheRoot := cacheDir(cfg)
	store := cache.NewStore(filepath.Join(cacheRoot, "binaries"))
	reg := registry.New(dataDir())

	dlOpts := []download.Option{}
	if cfg.Options.Retries > 0 {
		dlOpts = append(dlOpts, download.WithRetries(cfg.Options.Retries))
	}
	if cfg.Options.Timeout > 0 {
		dlOpts = append(dlOpts, download.WithTimeout(cfg.Options.Timeout))
	}
	downloader := download.NewDownloader(filepath.Join(cacheRoot, "tmp"), dlOpts...)

	provOpts := []release.Option{}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		provOpts = append(provOpts, release.WithToken(token))
	}

	res, err := resolver.New(resolver.Config{
		Provider:   release.NewGitHubProvider(provOpts...),
		Store:      store,
		Registry:   reg,
		Downloader: downloader,
		Verifier:   verify.NewVerifier(filepath.Join(configDir(), "keys")),
		Platform:   host,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		resolver: res,
		store:    store,
		registry: reg,
		config:   cfg,
		platform: host,
	}, nil
}

// resolveTarget expands a CLI target into a reference and options. A target
// containing a slash is a raw reference; a bare name is looked up in the pin
// file, then among previously registered binaries.
func (a *app) resolveTarget(target string) (resolver.Ref, resolver.Options, error) {
	if strings.Contains(target, "/") {
		ref, err := resolver.ParseRef(target)
		return ref, resolver.Options{}, err
	}

	if pin, ok := a.config.PinFor(target); ok {
		spec := pin.Repo
		if pin.Version != "" {
			spec += "@" + pin.Version
		}
		ref, err := resolver.ParseRef(spec)
		if err != nil {
			return resolver.Ref{}, resolver.Options{}, errors.Wrapf(err, "pin %q", target)
		}
		policy, err := verify.ParsePolicy(pin.Verify)
		if err != nil {
			return resolver.Ref{}, resolver.Options{}, errors.Wrapf(err, "pin %q", target)
		}
		return ref, resolver.Options{
			Name:        pin.Name,
			AssetFilter: pin.Asset,
			Policy:      policy,
			KeyName:     pin.Key,
		}, nil
	}

	if entry, ok := a.registry.GetEntry(target); ok {
		ref, err := resolver.ParseRef(entry.Repo)
		if err != nil {
			return resolver.Ref{}, resolver.Options{}, err
		}
		return ref, resolver.Options{Name: target}, nil
	}

	return resolver.Ref{}, resolver.Options{}, errors.Newf(
		"unknown name %q: use owner/repo, add a pin, or install it first", target)
}

// cacheDir resolves the cache root: flag, then environment, then pin file,
// then the XDG cache home.
func cacheDir(cfg *config.Config) string {
	if cacheDirFlag != "" {
		return cacheDirFlag
	}
	if dir := os.Getenv("GREL_CACHE_DIR"); dir != "" {
		return dir
	}
	if cfg != nil && cfg.Options.CacheDir != "" {
		return cfg.Options.CacheDir
	}
	return filepath.Join(xdg.CacheHome, "grel")
}

func configDir() string {
	if dir := os.Getenv("GREL_CONFIG_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(xdg.ConfigHome, "grel")
}

func dataDir() string {
	if dir := os.Getenv("GREL_DATA_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(xdg.DataHome, "grel")
}

func pinFile() string {
	if configFileFlag != "" {
		return configFileFlag
	}
	return filepath.Join(configDir(), "pins.lua")
}
