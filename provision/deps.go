package provision

import (
	"github.com/ethereum-optimism/infra/pkg-acceptor/matchspec"
	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

// DependencySet combines the test-time dependencies with the exact pin of pkg.
// The pin is always present exactly once and always last.
func DependencySet(testDeps []matchspec.MatchSpec, pkg types.PackageIdentity) *matchspec.Set {
	set := matchspec.NewSet(testDeps...)
	set.Pin(matchspec.Exact(pkg.Name, pkg.Version, pkg.BuildString))
	return set
}
