package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

const (
	condaInfoSegmentPrefix = "info-"
	condaSegmentSuffix     = ".tar.zst"
)

var _ Locator = (*condaLocator)(nil)

// condaLocator seeks straight to the info segment of the zip container.
type condaLocator struct {
	path string
}

func (l *condaLocator) Path() string {
	return l.path
}

func (l *condaLocator) Format() types.ArchiveFormat {
	return types.FormatConda
}

func (l *condaLocator) Locate(ctx context.Context, relPath string) ([]byte, error) {
	want := normalizeEntryPath(relPath)
	if want != InfoDir && !strings.HasPrefix(want, InfoDir+"/") {
		return nil, fmt.Errorf("%w: %s in %s", ErrUnsupportedSegment, want, l.path)
	}

	zr, err := zip.OpenReader(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open conda archive %s: %w", l.path, err)
	}
	defer zr.Close()

	var segment *zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, condaInfoSegmentPrefix) && strings.HasSuffix(f.Name, condaSegmentSuffix) {
			segment = f
			break
		}
	}
	if segment == nil {
		return nil, fmt.Errorf("conda archive %s has no info segment", l.path)
	}

	rc, err := segment.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open info segment of %s: %w", l.path, err)
	}
	defer rc.Close()

	dec, err := zstd.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd stream of %s: %w", l.path, err)
	}
	defer dec.Close()

	content, found, err := findInTar(ctx, dec, want)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.path, err)
	}
	if !found {
		return nil, &NotFoundError{Archive: l.path, Path: want}
	}
	return content, nil
}
