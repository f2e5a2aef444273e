package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	// Test with nil error
	RecordErrorDetails("test", nil)

	// Test with actual error
	RecordErrorDetails("test", errors.New("sample error"))
	assert.Equal(t, float64(1), testutil.ToFloat64(errorsTotal.WithLabelValues("test.sample_error")))
}

func TestRecordTest(t *testing.T) {
	RecordTest("foo-1.0-0", types.TestKindCommands, types.TestStatusPass)
	RecordTest("foo-1.0-0", types.TestKindCommands, types.TestStatusPass)
	RecordTest("foo-1.0-0", types.TestKindImports, types.TestStatusFail)
	// invalid results are dropped
	RecordTest("foo-1.0-0", types.TestKindImports, types.TestStatus("bogus"))

	assert.Equal(t, float64(2), testutil.ToFloat64(testsTotal.WithLabelValues("foo-1.0-0", "commands", "pass")))
	assert.Equal(t, float64(1), testutil.ToFloat64(testsTotal.WithLabelValues("foo-1.0-0", "imports", "fail")))
}

func TestRecordEviction(t *testing.T) {
	RecordEviction("bar-2-0")
	assert.Equal(t, float64(1), testutil.ToFloat64(cacheEvictionsTotal.WithLabelValues("bar-2-0")))
}

func TestRecordRunAndProvision(t *testing.T) {
	RecordProvision(3*time.Second, nil)
	RecordProvision(time.Second, errors.New("solver failed"))
	RecordRun("foo-1.0-0", "run1", types.TestStatusPass, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(runResults.WithLabelValues("foo-1.0-0", "run1", "pass")))
	assert.Equal(t, float64(1), testutil.ToFloat64(runDuration.WithLabelValues("foo-1.0-0", "run1")))
}
