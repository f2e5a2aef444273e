package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

var testPkg = types.PackageIdentity{Name: "foo", Version: "1.0", BuildString: "h123_0"}

func TestNewFileLogger(t *testing.T) {
	_, err := NewFileLogger(t.TempDir(), "")
	assert.Error(t, err)
	_, err = NewFileLogger("", "abc")
	assert.Error(t, err)

	base := t.TempDir()
	logger, err := NewFileLogger(base, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", logger.GetRunID())
	assert.Equal(t, filepath.Join(base, "testrun-abc"), logger.GetBaseDir())
	for _, status := range []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusSkip} {
		assert.DirExists(t, filepath.Join(logger.GetBaseDir(), string(status)))
	}
}

func TestLogTestResult(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run1")
	require.NoError(t, err)

	passed := &types.TestResult{
		Descriptor: types.TestDescriptor{Kind: types.TestKindCommands, Path: "/x/info/test/run_test.sh"},
		Status:     types.TestStatusPass,
		Duration:   time.Second,
		Output:     "\x1b[32mok\x1b[0m\n",
	}
	failed := &types.TestResult{
		Descriptor: types.TestDescriptor{Kind: types.TestKindImports, Path: "/x/info/test/run_test.py"},
		Status:     types.TestStatusFail,
		Error:      errors.New("exit status 1"),
		Output:     "Traceback\n",
	}
	require.NoError(t, logger.LogTestResult(testPkg, passed))
	require.NoError(t, logger.LogTestResult(testPkg, failed))
	require.NoError(t, logger.LogSummary("\x1b[1mall done\x1b[0m\n"))
	require.NoError(t, logger.Complete())

	assert.Equal(t, filepath.Join(logger.GetBaseDir(), "pass", "foo-1.0-h123_0_run_test.sh.log"), passed.LogFile)
	content, err := os.ReadFile(passed.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Status: pass")
	assert.True(t, strings.HasSuffix(string(content), "\nok\n"))
	assert.NotContains(t, string(content), "\x1b[")

	content, err = os.ReadFile(failed.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Error: exit status 1")
	assert.Equal(t, "fail", filepath.Base(filepath.Dir(failed.LogFile)))

	all, err := os.ReadFile(logger.GetAllLogsFile())
	require.NoError(t, err)
	assert.Contains(t, string(all), "commands(run_test.sh) pass")
	assert.Contains(t, string(all), "Traceback")

	summary, err := os.ReadFile(logger.GetSummaryFile())
	require.NoError(t, err)
	assert.Equal(t, "all done\n", string(summary))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d.log", safeFilename("a/b:c d.log"))
}
