package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	}
}

func TestScanTests(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"run_test.sh":                 "true",
		"run_test.py":                 "import foo",
		"run_test.bat":                "exit 0",
		"RUN_TEST.sh":                 "true",
		"run_test.pl":                 "1;",
		"notes.txt":                   "",
		"nested/run_test.sh":          "true",
		"test_time_dependencies.json": "[]",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "run_test.py.d"), 0o755))

	descriptors, err := ScanTests(dir)
	require.NoError(t, err)
	require.Len(t, descriptors, 3)

	assert.Equal(t, types.TestDescriptor{Kind: types.TestKindCommands, Path: filepath.Join(dir, "run_test.bat")}, descriptors[0])
	assert.Equal(t, types.TestDescriptor{Kind: types.TestKindImports, Path: filepath.Join(dir, "run_test.py")}, descriptors[1])
	assert.Equal(t, types.TestDescriptor{Kind: types.TestKindCommands, Path: filepath.Join(dir, "run_test.sh")}, descriptors[2])
}

func TestScanTestsMissingDir(t *testing.T) {
	descriptors, err := ScanTests(filepath.Join(t.TempDir(), "info", "test"))
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

func TestScanTestsEmptyDir(t *testing.T) {
	descriptors, err := ScanTests(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

func TestScanTestsNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err := ScanTests(file)
	assert.Error(t, err)
}

func TestTestDir(t *testing.T) {
	assert.Equal(t, filepath.Join("cache", "pkgs", "foo-1.0-0", "info", "test"), TestDir(filepath.Join("cache", "pkgs", "foo-1.0-0")))
}
