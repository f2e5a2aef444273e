package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrMissingFileName    = errors.New("missing package file name")
	ErrUnsupportedArchive = errors.New("archive type not supported")
	ErrInvalidIdentity    = errors.New("invalid package identity")
)

// ArchiveFormat is the container format of a package archive.
type ArchiveFormat string

const (
	// FormatTarBz2 is the legacy bzip2 compressed tarball, always read sequentially.
	FormatTarBz2 ArchiveFormat = "tar.bz2"
	// FormatConda is the zip based format with separately compressed info and pkg segments.
	FormatConda ArchiveFormat = "conda"
)

// Extension returns the file extension including the leading dot.
func (f ArchiveFormat) Extension() string {
	return "." + string(f)
}

// ArchiveFormatFromPath determines the archive format from the file name.
func ArchiveFormatFromPath(path string) (ArchiveFormat, error) {
	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(name, FormatTarBz2.Extension()):
		return FormatTarBz2, nil
	case strings.HasSuffix(name, FormatConda.Extension()):
		return FormatConda, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedArchive, name)
	}
}

// PackageIdentity identifies one exact build of a package.
type PackageIdentity struct {
	Name        string
	Version     string
	BuildString string
}

// IdentityFromPath parses "<name>-<version>-<build>.<ext>". Names may contain dashes,
// versions and build strings may not.
func IdentityFromPath(path string) (PackageIdentity, error) {
	name := filepath.Base(path)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return PackageIdentity{}, ErrMissingFileName
	}
	format, err := ArchiveFormatFromPath(name)
	if err != nil {
		return PackageIdentity{}, err
	}
	stem := strings.TrimSuffix(name, format.Extension())

	buildIdx := strings.LastIndex(stem, "-")
	if buildIdx <= 0 {
		return PackageIdentity{}, fmt.Errorf("%w: %s", ErrInvalidIdentity, name)
	}
	versionIdx := strings.LastIndex(stem[:buildIdx], "-")
	if versionIdx <= 0 {
		return PackageIdentity{}, fmt.Errorf("%w: %s", ErrInvalidIdentity, name)
	}

	id := PackageIdentity{
		Name:        stem[:versionIdx],
		Version:     stem[versionIdx+1 : buildIdx],
		BuildString: stem[buildIdx+1:],
	}
	if id.Version == "" || id.BuildString == "" {
		return PackageIdentity{}, fmt.Errorf("%w: %s", ErrInvalidIdentity, name)
	}
	return id, nil
}

// CacheKey is the directory name of this build inside the package cache.
func (p PackageIdentity) CacheKey() string {
	return fmt.Sprintf("%s-%s-%s", p.Name, p.Version, p.BuildString)
}

func (p PackageIdentity) String() string {
	return p.CacheKey()
}
