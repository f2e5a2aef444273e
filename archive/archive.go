// Package archive reads single files out of conda package archives without
// unpacking them.
//
// Two container formats are supported:
//   - .tar.bz2: a bzip2 compressed tarball that can only be read sequentially
//   - .conda: a zip file holding separately zstd compressed "info" and "pkg" tarballs;
//     only the info segment is read, which keeps lookups of metadata cheap
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// InfoDir is the reserved metadata directory inside every package.
const InfoDir = "info"

var (
	ErrNotFound           = errors.New("file not found in archive")
	ErrUnsupportedSegment = errors.New("path outside of the info segment is not supported")
)

// NotFoundError is returned when the archive holds no entry with the requested path.
type NotFoundError struct {
	Archive string
	Path    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%q not found in %q", e.Path, e.Archive)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Locator finds one file inside a package archive.
type Locator interface {
	// Locate returns the content of the entry at relPath. The first matching entry wins.
	Locate(ctx context.Context, relPath string) ([]byte, error)
	// Path is the archive location on disk.
	Path() string
	// Format is the container format chosen when the archive was opened.
	Format() types.ArchiveFormat
}

// Open selects the locator implementation for the archive from its file extension.
// The file itself is opened on every Locate call.
func Open(archivePath string) (Locator, error) {
	if filepath.Base(archivePath) == "." || archivePath == "" {
		return nil, types.ErrMissingFileName
	}
	format, err := types.ArchiveFormatFromPath(archivePath)
	if err != nil {
		return nil, err
	}
	switch format {
	case types.FormatTarBz2:
		return &tarBz2Locator{path: archivePath}, nil
	case types.FormatConda:
		return &condaLocator{path: archivePath}, nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedArchive, format)
	}
}

// normalizeEntryPath converts a tar entry or requested path into the form used for comparison.
func normalizeEntryPath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(p, "./")
}

// findInTar scans tar entries in order and returns the content of the first regular file at want.
func findInTar(ctx context.Context, r io.Reader, want string) ([]byte, bool, error) {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		if normalizeEntryPath(hdr.Name) != want {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		return content, true, nil
	}
}
