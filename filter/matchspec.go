package filter

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/condaops/conda-mirror/repodata"
)

// MatchSpec is a full conda package match spec: a name pattern plus optional
// version and build constraints. Accepted forms:
//
//	numpy
//	numpy >=1.11
//	numpy 1.11.*
//	numpy ==1.11.0 py36_0
//	numpy=1.11=py36_0
//	py*
type MatchSpec struct {
	raw  string
	name glob.Glob
	rest NamelessSpec
}

// NamelessSpec is the version/build part of a match spec, applied to a
// record whose name matched elsewhere.
type NamelessSpec struct {
	raw     string
	version *VersionSpec
	build   glob.Glob
}

// ParseMatchSpec parses a full match spec string.
func ParseMatchSpec(s string) (*MatchSpec, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, fmt.Errorf("empty match spec")
	}

	var name, rest string

	// "name=version=build" is the legacy conda form; detect it before
	// treating "=" as a version operator.
	if parts := strings.Split(raw, "="); len(parts) == 3 &&
		!strings.ContainsAny(raw, " <>!~,|") && parts[1] != "" && parts[2] != "" {
		name = parts[0]
		rest = "=" + parts[1] + " " + parts[2]
	} else if idx := strings.IndexAny(raw, " =<>!~"); idx >= 0 {
		name = strings.TrimSpace(raw[:idx])
		rest = strings.TrimSpace(raw[idx:])
	} else {
		name = raw
	}

	if name == "" {
		return nil, fmt.Errorf("match spec %q has no package name", raw)
	}

	nameGlob, err := glob.Compile(strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("match spec name %q: %v", name, err)
	}

	spec := &MatchSpec{raw: raw, name: nameGlob}
	if rest != "" {
		nameless, err := ParseNamelessSpec(rest)
		if err != nil {
			return nil, fmt.Errorf("match spec %q: %v", raw, err)
		}
		spec.rest = *nameless
	}
	return spec, nil
}

// ParseNamelessSpec parses the version (and optional build) part of a match
// spec, e.g. ">=1.11", "1.11.*", "==1.11.0 py36_0".
func ParseNamelessSpec(s string) (*NamelessSpec, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, fmt.Errorf("empty version spec")
	}

	spec := &NamelessSpec{raw: raw}

	fields := strings.Fields(raw)
	switch len(fields) {
	case 1:
	case 2:
		build, err := glob.Compile(fields[1])
		if err != nil {
			return nil, fmt.Errorf("build spec %q: %v", fields[1], err)
		}
		spec.build = build
	default:
		return nil, fmt.Errorf("cannot parse version spec %q", raw)
	}

	version, err := ParseVersionSpec(fields[0])
	if err != nil {
		return nil, err
	}
	spec.version = version
	return spec, nil
}

// Matches reports whether given record satisfies the full spec.
func (m *MatchSpec) Matches(record *repodata.PackageRecord) bool {
	if !m.name.Match(record.NormalizedName()) {
		return false
	}
	return m.rest.Matches(record)
}

// String is the fmt.Stringer implementation of MatchSpec.
func (m *MatchSpec) String() string {
	return m.raw
}

// Matches reports whether the version/build constraints hold for given
// record. The record name is not consulted.
func (n *NamelessSpec) Matches(record *repodata.PackageRecord) bool {
	if n.version != nil && !n.version.Matches(record.Version) {
		return false
	}
	if n.build != nil && !n.build.Match(record.Build) {
		return false
	}
	return true
}

// String is the fmt.Stringer implementation of NamelessSpec.
func (n *NamelessSpec) String() string {
	return n.raw
}
