package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// TestDir is where an extracted package keeps its test scripts.
func TestDir(pkgDir string) string {
	return filepath.Join(pkgDir, "info", "test")
}

// ScanTests lists the recognized test scripts directly inside dir, sorted by file name.
// A missing dir yields no descriptors.
func ScanTests(dir string) ([]types.TestDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read test directory %s: %w", dir, err)
	}

	var descriptors []types.TestDescriptor
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if d, ok := types.DescriptorForFile(filepath.Join(dir, entry.Name())); ok {
			descriptors = append(descriptors, d)
		}
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name() < descriptors[j].Name()
	})
	return descriptors, nil
}
