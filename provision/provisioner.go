// Package provision builds the isolated environment a package is tested in.
//
// Provisioning evicts any cached copy of the package under test, then asks an
// Installer to solve and link the test dependencies plus an exact pin of the
// package into a fresh prefix.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/pkg-acceptor/matchspec"
	"github.com/ethereum-optimism/infra/pkg-acceptor/metrics"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// ProvisionError is returned when the environment could not be created.
type ProvisionError struct {
	Prefix string
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to provision environment at %s: %v", e.Prefix, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Request describes the environment to provision.
type Request struct {
	Package      types.PackageIdentity
	Dependencies []matchspec.MatchSpec
	Platform     types.Platform
	TargetDir    string
	Channels     []string
	NoClean      bool
}

// Environment is a provisioned prefix.
type Environment struct {
	Prefix string
	Specs  []string
}

// Provisioner evicts cache entries and installs environments, one cache key at a time.
type Provisioner struct {
	cache     PackageCache
	installer Installer
	locks     *keyedLock
	log       log.Logger
}

// NewProvisioner creates a provisioner over the cache rooted at cacheDir.
func NewProvisioner(cacheDir string, installer Installer, logger log.Logger) (*Provisioner, error) {
	if cacheDir == "" {
		return nil, errors.New("cacheDir cannot be empty")
	}
	if installer == nil {
		return nil, errors.New("installer cannot be nil")
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Provisioner{
		cache:     PackageCache{Root: cacheDir},
		installer: installer,
		locks:     newKeyedLock(),
		log:       logger,
	}, nil
}

// Cache returns the package cache this provisioner evicts from.
func (p *Provisioner) Cache() PackageCache {
	return p.cache
}

// Provision creates the test environment. The returned prefix is absolute with symlinks resolved.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*Environment, error) {
	key := req.Package.CacheKey()
	unlock, err := p.locks.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for cache key %s: %w", key, err)
	}
	defer unlock()

	evicted, err := p.cache.Evict(key)
	if err != nil {
		return nil, err
	}
	if evicted {
		metrics.RecordEviction(key)
		p.log.Info("Evicted cached package", "key", key)
	}

	if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}
	prefix, err := canonicalize(req.TargetDir)
	if err != nil {
		return nil, err
	}

	specs := DependencySet(req.Dependencies, req.Package).Strings()
	p.log.Debug("Resolved test environment", "prefix", prefix, "specs", specs)

	start := time.Now()
	err = p.installer.Install(ctx, InstallRequest{
		Specs:    specs,
		Platform: req.Platform,
		Prefix:   prefix,
		Channels: req.Channels,
		CacheDir: p.cache.Root,
		NoClean:  req.NoClean,
	})
	metrics.RecordProvision(time.Since(start), err)
	if err != nil {
		return nil, &ProvisionError{Prefix: prefix, Err: err}
	}
	return &Environment{Prefix: prefix, Specs: specs}, nil
}

func canonicalize(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return resolved, nil
}
