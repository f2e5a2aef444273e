package provision

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CacheDirEnvVar overrides the default package cache location.
const CacheDirEnvVar = "RATTLER_CACHE_DIR"

// DefaultCacheDir resolves the package cache root. getenv is usually os.Getenv.
func DefaultCacheDir(getenv func(string) string) (string, error) {
	if dir := getenv(CacheDirEnvVar); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user cache directory: %w", err)
	}
	return filepath.Join(base, "rattler", "cache"), nil
}

// PackageCache is the on-disk cache of extracted packages, laid out as <root>/pkgs/<cache-key>/.
type PackageCache struct {
	Root string
}

// PkgsDir is the directory holding all extracted packages.
func (c PackageCache) PkgsDir() string {
	return filepath.Join(c.Root, "pkgs")
}

// Dir is the extracted package directory for key.
func (c PackageCache) Dir(key string) string {
	return filepath.Join(c.PkgsDir(), key)
}

// Evict removes the extracted directory of key and any downloaded archive next to it.
// It reports whether anything was removed.
func (c PackageCache) Evict(key string) (bool, error) {
	evicted := false
	for _, path := range []string{
		c.Dir(key),
		c.Dir(key) + ".tar.bz2",
		c.Dir(key) + ".conda",
	} {
		if _, err := os.Lstat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return evicted, fmt.Errorf("failed to stat cached package %s: %w", path, err)
		}
		if err := os.RemoveAll(path); err != nil {
			return evicted, fmt.Errorf("failed to remove cached package %s: %w", path, err)
		}
		evicted = true
	}
	return evicted, nil
}
