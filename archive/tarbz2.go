package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/dsnet/compress/bzip2"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

var _ Locator = (*tarBz2Locator)(nil)

// tarBz2Locator streams the whole tarball; the format has no index.
type tarBz2Locator struct {
	path string
}

func (l *tarBz2Locator) Path() string {
	return l.path
}

func (l *tarBz2Locator) Format() types.ArchiveFormat {
	return types.FormatTarBz2
}

func (l *tarBz2Locator) Locate(ctx context.Context, relPath string) ([]byte, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bzip2 stream of %s: %w", l.path, err)
	}
	defer bz.Close()

	want := normalizeEntryPath(relPath)
	content, found, err := findInTar(ctx, bz, want)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.path, err)
	}
	if !found {
		return nil, &NotFoundError{Archive: l.path, Path: want}
	}
	return content, nil
}
