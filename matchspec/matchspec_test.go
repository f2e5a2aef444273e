package matchspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		expected  MatchSpec
		canonical string
	}{
		{
			name:      "name only",
			raw:       "pytest",
			expected:  MatchSpec{Name: "pytest"},
			canonical: "pytest",
		},
		{
			name:      "operator version",
			raw:       "pytest>=7",
			expected:  MatchSpec{Name: "pytest", Version: ">=7"},
			canonical: "pytest>=7",
		},
		{
			name:      "spaces around operator",
			raw:       "python >= 3.8, <4",
			expected:  MatchSpec{Name: "python", Version: ">=3.8,<4"},
			canonical: "python>=3.8,<4",
		},
		{
			name:      "exact pin",
			raw:       "foo=1.0=0",
			expected:  MatchSpec{Name: "foo", Version: "1.0", Build: "0"},
			canonical: "foo=1.0=0",
		},
		{
			name:      "fuzzy version",
			raw:       "foo=1.0",
			expected:  MatchSpec{Name: "foo", Version: "=1.0"},
			canonical: "foo=1.0",
		},
		{
			name:      "space separated version and build",
			raw:       "numpy 1.26 py312*",
			expected:  MatchSpec{Name: "numpy", Version: "1.26", Build: "py312*"},
			canonical: "numpy=1.26=py312*",
		},
		{
			name:      "bare version is exact",
			raw:       "numpy 1.26",
			expected:  MatchSpec{Name: "numpy", Version: "1.26"},
			canonical: "numpy==1.26",
		},
		{
			name:      "alternatives",
			raw:       "openssl 1.1|3.*",
			expected:  MatchSpec{Name: "openssl", Version: "1.1|3.*"},
			canonical: "openssl 1.1|3.*",
		},
		{
			name:      "channel and uppercase name",
			raw:       "conda-forge::PyYAML",
			expected:  MatchSpec{Channel: "conda-forge", Name: "pyyaml"},
			canonical: "conda-forge::pyyaml",
		},
		{
			name:      "brackets",
			raw:       "foo[version='>=1,<2', build=py*]",
			expected:  MatchSpec{Name: "foo", Version: ">=1,<2", Build: "py*"},
			canonical: "foo >=1,<2 py*",
		},
		{
			name:      "any version with build",
			raw:       "foo * cuda*",
			expected:  MatchSpec{Name: "foo", Build: "cuda*"},
			canonical: "foo * cuda*",
		},
		{
			name:      "comment stripped",
			raw:       "pip # needed for tests",
			expected:  MatchSpec{Name: "pip"},
			canonical: "pip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
			assert.Equal(t, tt.canonical, spec.String())

			reparsed, err := Parse(spec.String())
			require.NoError(t, err)
			assert.Equal(t, spec.String(), reparsed.String(), "canonical form should be stable")
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"=foo",
		"foo=",
		"foo >=1.0 py* extra",
		"foo >>1",
		"foo[version]",
		"foo[md5=abc]",
		"::foo",
		"foo 1.0 bad/build",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSpec)
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestParseAllFailsOnFirstInvalid(t *testing.T) {
	_, err := ParseAll([]string{"pytest", "bad spec with many fields", "pip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad spec with many fields")

	specs, err := ParseAll([]string{"pytest", "pip"})
	require.NoError(t, err)
	assert.Len(t, specs, 2)
}

func TestSet(t *testing.T) {
	set := NewSet(MustParse("pytest>=7"), MustParse("pytest >= 7"), MustParse("pip"))
	assert.Equal(t, []string{"pytest>=7", "pip"}, set.Strings())

	pin := Exact("foo", "1.0", "0")
	set.Add(MustParse("foo=1.0=0"))
	set.Pin(pin)
	set.Add(MustParse("numpy"))
	set.Pin(pin)

	assert.Equal(t, []string{"pytest>=7", "pip", "numpy", "foo=1.0=0"}, set.Strings())
	assert.Equal(t, 4, set.Len())
	assert.True(t, set.Contains(pin))
}
