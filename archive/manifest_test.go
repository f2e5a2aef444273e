package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/pkg-acceptor/archive/archivetest"
	"github.com/ethereum-optimism/infra/pkg-acceptor/matchspec"
)

func TestReadTestDependencies(t *testing.T) {
	tests := []struct {
		name     string
		files    []archivetest.File
		expected []string
		errMsg   string
	}{
		{
			name:     "missing manifest yields no dependencies",
			files:    []archivetest.File{{Name: "info/index.json", Content: "{}"}},
			expected: nil,
		},
		{
			name: "empty list",
			files: []archivetest.File{
				{Name: TestDependenciesPath, Content: `[]`},
			},
			expected: []string{},
		},
		{
			name: "specifiers are parsed",
			files: []archivetest.File{
				{Name: TestDependenciesPath, Content: `["pytest>=7", "pip", "numpy 1.26 py312*"]`},
			},
			expected: []string{"pytest>=7", "pip", "numpy=1.26=py312*"},
		},
		{
			name: "malformed json",
			files: []archivetest.File{
				{Name: TestDependenciesPath, Content: `["pytest"`},
			},
			errMsg: "failed to read test dependencies",
		},
		{
			name: "not a list of strings",
			files: []archivetest.File{
				{Name: TestDependenciesPath, Content: `{"deps": ["pytest"]}`},
			},
			errMsg: "failed to read test dependencies",
		},
		{
			name: "one bad specifier fails the whole read",
			files: []archivetest.File{
				{Name: TestDependenciesPath, Content: `["pytest", "=broken"]`},
			},
			errMsg: "=broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, ext := range []string{".tar.bz2", ".conda"} {
				path := filepath.Join(t.TempDir(), "foo-1.0-0"+ext)
				if ext == ".conda" {
					require.NoError(t, archivetest.WriteConda(path, tt.files))
				} else {
					require.NoError(t, archivetest.WriteTarBz2(path, tt.files))
				}
				loc, err := Open(path)
				require.NoError(t, err)

				specs, err := ReadTestDependencies(context.Background(), loc, TestDependenciesPath)
				if tt.errMsg != "" {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.errMsg)
					var manifestErr *ManifestError
					assert.ErrorAs(t, err, &manifestErr)
					continue
				}
				require.NoError(t, err)
				if tt.expected == nil {
					assert.Empty(t, specs)
					continue
				}
				got := make([]string, 0, len(specs))
				for _, s := range specs {
					got = append(got, s.String())
				}
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestReadTestDependenciesBadSpecUnwraps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo-1.0-0.tar.bz2")
	require.NoError(t, archivetest.WriteTarBz2(path, []archivetest.File{
		{Name: TestDependenciesPath, Content: `["foo >>1"]`},
	}))
	loc, err := Open(path)
	require.NoError(t, err)

	_, err = ReadTestDependencies(context.Background(), loc, TestDependenciesPath)
	assert.ErrorIs(t, err, matchspec.ErrInvalidSpec)
}

func TestReadTestDependenciesUnsupportedSegmentIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo-1.0-0.conda")
	require.NoError(t, archivetest.WriteConda(path, nil))
	loc, err := Open(path)
	require.NoError(t, err)

	_, err = ReadTestDependencies(context.Background(), loc, "site-packages/deps.json")
	require.ErrorIs(t, err, ErrUnsupportedSegment)
}
