// Package matchspec parses conda style dependency specifiers such as
// "pytest>=7", "numpy 1.26 py312*", "conda-forge::foo=1.0=0" or "foo[version='>=1,<2']".
package matchspec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidSpec = errors.New("invalid match spec")

var (
	nameRegex       = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.\-]*)(.*)$`)
	constraintRegex = regexp.MustCompile(`^(==|!=|>=|<=|~=|>|<|=)?[0-9A-Za-z_.*+!\-]+$`)
	buildRegex      = regexp.MustCompile(`^[0-9A-Za-z_.*+\-]+$`)
	operatorSpace   = regexp.MustCompile(`([<>=!~,|])\s+`)
	spaceOperator   = regexp.MustCompile(`\s+([,|])`)
)

// MatchSpec is a parsed dependency specifier.
type MatchSpec struct {
	Channel string
	Name    string
	Version string // version constraint, empty matches any version
	Build   string // build string glob, empty matches any build
}

// ParseError reports which specifier failed and why.
type ParseError struct {
	Spec   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse match spec %q: %s", e.Spec, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidSpec
}

// Exact returns the specifier that pins one exact build.
func Exact(name, version, build string) MatchSpec {
	return MatchSpec{Name: strings.ToLower(name), Version: version, Build: build}
}

// Parse parses a single specifier.
func Parse(raw string) (MatchSpec, error) {
	s := raw
	if idx := strings.Index(s, "#"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return MatchSpec{}, &ParseError{Spec: raw, Reason: "empty specifier"}
	}

	var spec MatchSpec

	var brackets map[string]string
	if strings.HasSuffix(s, "]") {
		open := strings.Index(s, "[")
		if open < 0 {
			return MatchSpec{}, &ParseError{Spec: raw, Reason: "unbalanced brackets"}
		}
		var err error
		brackets, err = parseBrackets(s[open+1 : len(s)-1])
		if err != nil {
			return MatchSpec{}, &ParseError{Spec: raw, Reason: err.Error()}
		}
		s = strings.TrimSpace(s[:open])
	}

	if channel, rest, found := strings.Cut(s, "::"); found {
		if channel == "" {
			return MatchSpec{}, &ParseError{Spec: raw, Reason: "empty channel"}
		}
		spec.Channel = channel
		s = rest
	}

	s = operatorSpace.ReplaceAllString(s, "$1")
	s = spaceOperator.ReplaceAllString(s, "$1")

	m := nameRegex.FindStringSubmatch(s)
	if m == nil {
		return MatchSpec{}, &ParseError{Spec: raw, Reason: "invalid package name"}
	}
	spec.Name = strings.ToLower(m[1])
	rest := m[2]

	switch {
	case rest == "":
	case strings.HasPrefix(rest, " ") || strings.HasPrefix(rest, "\t"):
		fields := strings.Fields(rest)
		if len(fields) > 2 {
			return MatchSpec{}, &ParseError{Spec: raw, Reason: "too many fields"}
		}
		spec.Version = fields[0]
		if len(fields) == 2 {
			spec.Build = fields[1]
		}
	case strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "=="):
		fields := strings.Fields(rest)
		if len(fields) > 1 {
			return MatchSpec{}, &ParseError{Spec: raw, Reason: "unexpected field after version"}
		}
		version, build, hasBuild := strings.Cut(strings.TrimPrefix(fields[0], "="), "=")
		if hasBuild {
			spec.Version = version
			spec.Build = build
		} else {
			spec.Version = "=" + version
		}
	default:
		fields := strings.Fields(rest)
		if len(fields) > 2 {
			return MatchSpec{}, &ParseError{Spec: raw, Reason: "too many fields"}
		}
		spec.Version = fields[0]
		if len(fields) == 2 {
			spec.Build = fields[1]
		}
	}

	for key, value := range brackets {
		switch key {
		case "version":
			spec.Version = value
		case "build":
			spec.Build = value
		case "channel":
			spec.Channel = value
		default:
			return MatchSpec{}, &ParseError{Spec: raw, Reason: fmt.Sprintf("unsupported bracket key %q", key)}
		}
	}

	if spec.Version == "*" {
		spec.Version = ""
	}
	if err := validateVersion(spec.Version); err != nil {
		return MatchSpec{}, &ParseError{Spec: raw, Reason: err.Error()}
	}
	if spec.Build != "" && !buildRegex.MatchString(spec.Build) {
		return MatchSpec{}, &ParseError{Spec: raw, Reason: fmt.Sprintf("invalid build string %q", spec.Build)}
	}
	return spec, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(raw string) MatchSpec {
	spec, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return spec
}

// ParseAll parses every specifier, failing on the first invalid one.
func ParseAll(raw []string) ([]MatchSpec, error) {
	specs := make([]MatchSpec, 0, len(raw))
	for _, r := range raw {
		spec, err := Parse(r)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseBrackets(body string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range splitOutsideQuotes(body, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("bracket entry %q is not key=value", part)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `'"`)
		if key == "" || value == "" {
			return nil, fmt.Errorf("bracket entry %q is empty", part)
		}
		out[key] = value
	}
	return out, nil
}

func splitOutsideQuotes(s string, sep rune) []string {
	var parts []string
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == sep:
			parts = append(parts, s[start:i])
			start = i + len(string(r))
		}
	}
	return append(parts, s[start:])
}

func validateVersion(version string) error {
	if version == "" {
		return nil
	}
	for _, alternative := range strings.Split(version, "|") {
		for _, constraint := range strings.Split(alternative, ",") {
			if !constraintRegex.MatchString(constraint) {
				return fmt.Errorf("invalid version constraint %q", constraint)
			}
		}
	}
	return nil
}

func startsWithOperator(version string) bool {
	return version != "" && strings.ContainsAny(version[:1], "<>=!~")
}

func isCompound(version string) bool {
	return strings.ContainsAny(version, ",|")
}

// String renders the specifier in a canonical form understood by conda compatible solvers.
func (m MatchSpec) String() string {
	var b strings.Builder
	if m.Channel != "" {
		b.WriteString(m.Channel)
		b.WriteString("::")
	}
	b.WriteString(m.Name)

	switch {
	case m.Version == "" && m.Build == "":
	case m.Version == "":
		b.WriteString(" * ")
		b.WriteString(m.Build)
	case m.Build == "" && startsWithOperator(m.Version):
		b.WriteString(m.Version)
	case m.Build == "" && isCompound(m.Version):
		b.WriteString(" ")
		b.WriteString(m.Version)
	case m.Build == "":
		b.WriteString("==")
		b.WriteString(m.Version)
	case startsWithOperator(m.Version) || isCompound(m.Version):
		b.WriteString(" ")
		b.WriteString(m.Version)
		b.WriteString(" ")
		b.WriteString(m.Build)
	default:
		b.WriteString("=")
		b.WriteString(m.Version)
		b.WriteString("=")
		b.WriteString(m.Build)
	}
	return b.String()
}
