package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/pkg-acceptor/matchspec"
)

// TestDependenciesPath is where packages record the dependencies only needed to run their tests.
const TestDependenciesPath = "info/test/test_time_dependencies.json"

// ManifestError is returned when the test dependency manifest exists but cannot be used.
type ManifestError struct {
	Archive string
	Path    string
	Err     error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("failed to read test dependencies %s from %s: %v", e.Path, e.Archive, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// ReadTestDependencies reads the JSON list of specifiers stored at manifestPath.
// A missing manifest means the package has no extra test dependencies.
func ReadTestDependencies(ctx context.Context, loc Locator, manifestPath string) ([]matchspec.MatchSpec, error) {
	content, err := loc.Locate(ctx, manifestPath)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &ManifestError{Archive: loc.Path(), Path: manifestPath, Err: err}
	}

	var raw []string
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, &ManifestError{Archive: loc.Path(), Path: manifestPath, Err: err}
	}

	specs, err := matchspec.ParseAll(raw)
	if err != nil {
		return nil, &ManifestError{Archive: loc.Path(), Path: manifestPath, Err: err}
	}
	return specs, nil
}
