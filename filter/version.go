package filter

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// VersionSpec is a conda version constraint expression: a disjunction ("|")
// of conjunctions (",") of primitive constraints.
//
// Supported primitives: "==", "!=", ">=", "<=", ">", "<", "~=", "=" and bare
// versions. "=1.0" and star specs like "1.0.*" are prefix matches; "==" is
// exact; "~=" is a compatible release (at least the given version, within
// the same release series). Ordering comparisons are delegated to
// hashicorp/go-version; exotic conda orderings ("_" pre-release tags, "post"
// releases) are outside this grammar.
type VersionSpec struct {
	raw string
	any []constraintGroup
}

// constraintGroup is a conjunction of primitive constraints.
type constraintGroup []constraint

type constraint struct {
	op      string
	version string
}

// ParseVersionSpec parses a version constraint expression.
func ParseVersionSpec(s string) (*VersionSpec, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, fmt.Errorf("empty version spec")
	}

	spec := &VersionSpec{raw: raw}
	for _, alt := range strings.Split(raw, "|") {
		var group constraintGroup
		for _, prim := range strings.Split(alt, ",") {
			c, err := parseConstraint(prim)
			if err != nil {
				return nil, err
			}
			group = append(group, c)
		}
		if len(group) == 0 {
			return nil, fmt.Errorf("empty constraint in version spec %q", raw)
		}
		spec.any = append(spec.any, group)
	}
	return spec, nil
}

func parseConstraint(s string) (constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return constraint{}, fmt.Errorf("empty version constraint")
	}

	for _, op := range []string{"==", "!=", ">=", "<=", "~=", ">", "<", "="} {
		if strings.HasPrefix(s, op) {
			ver := strings.TrimSpace(strings.TrimPrefix(s, op))
			if ver == "" {
				return constraint{}, fmt.Errorf("version constraint %q has no operand", s)
			}
			return constraint{op: op, version: ver}, nil
		}
	}

	// A bare version; "1.0.*" and "1.0*" behave like "=1.0".
	return constraint{op: "=", version: s}, nil
}

// Matches reports whether given version satisfies the spec.
func (v *VersionSpec) Matches(version string) bool {
	for _, group := range v.any {
		if group.matches(version) {
			return true
		}
	}
	return false
}

// String is the fmt.Stringer implementation of VersionSpec.
func (v *VersionSpec) String() string {
	return v.raw
}

func (g constraintGroup) matches(version string) bool {
	for _, c := range g {
		if !c.matches(version) {
			return false
		}
	}
	return true
}

func (c constraint) matches(version string) bool {
	spec := c.version
	star := strings.HasSuffix(spec, ".*") || strings.HasSuffix(spec, "*")

	switch c.op {
	case "=":
		return prefixMatch(spec, version)
	case "==":
		if star {
			return prefixMatch(spec, version)
		}
		cmp, ok := compare(version, spec)
		return ok && cmp == 0
	case "!=":
		if star {
			return !prefixMatch(spec, version)
		}
		cmp, ok := compare(version, spec)
		return ok && cmp != 0
	case ">=":
		cmp, ok := compare(version, spec)
		return ok && cmp >= 0
	case "<=":
		cmp, ok := compare(version, spec)
		return ok && cmp <= 0
	case ">":
		cmp, ok := compare(version, spec)
		return ok && cmp > 0
	case "<":
		cmp, ok := compare(version, spec)
		return ok && cmp < 0
	case "~=":
		// Compatible release: at least the given version, within the series
		// of all but its last segment.
		cmp, ok := compare(version, spec)
		if !ok || cmp < 0 {
			return false
		}
		segments := splitSegments(spec)
		if len(segments) < 2 {
			return true
		}
		return prefixMatch(strings.Join(segments[:len(segments)-1], "."), version)
	default:
		return false
	}
}

// compare orders two version strings. Versions that hashicorp/go-version
// cannot parse never satisfy an ordering constraint.
func compare(version, spec string) (int, bool) {
	lhs, err := goversion.NewVersion(version)
	if err != nil {
		return 0, false
	}
	rhs, err := goversion.NewVersion(spec)
	if err != nil {
		return 0, false
	}
	return lhs.Compare(rhs), true
}

// prefixMatch reports whether version lies within the series denoted by
// spec: its leading segments equal the spec's segments, star suffixes
// stripped.
func prefixMatch(spec, version string) bool {
	spec = strings.TrimSuffix(spec, "*")
	spec = strings.TrimSuffix(spec, ".")

	specSegments := splitSegments(spec)
	versionSegments := splitSegments(version)
	if len(specSegments) > len(versionSegments) {
		return false
	}
	for i, s := range specSegments {
		if !segmentEqual(s, versionSegments[i]) {
			return false
		}
	}
	return true
}

func splitSegments(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
}

// segmentEqual compares two version segments, treating numeric segments by
// value so "01" equals "1".
func segmentEqual(a, b string) bool {
	if a == b {
		return true
	}
	return strings.TrimLeft(a, "0") == strings.TrimLeft(b, "0") && isDigits(a) && isDigits(b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
