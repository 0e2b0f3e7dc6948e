package resolve

import (
	"strings"

	"golang.org/x/mod/semver"
)

// RefKind classifies a module reference by its search-path convention.
type RefKind int

const (
	RefRelative RefKind = iota
	RefStd
	RefFFI
)

func (k RefKind) String() string {
	switch k {
	case RefStd:
		return "std"
	case RefFFI:
		return "ffi"
	default:
		return "relative"
	}
}

// Ref is a parsed "include" target: a kind, a bare name, and an
// optional semver compatibility pin ("std:json@v1.2.3").
type Ref struct {
	Kind    RefKind
	Name    string
	Version string // "" if unpinned; otherwise a valid semver.IsValid string
	Raw     string
}

// ParseRef splits a raw include string into its kind, name, and
// optional "@vX.Y.Z" pin. A malformed pin (present but not
// semver.IsValid) is preserved verbatim in Version so the caller can
// report it rather than silently dropping it.
func ParseRef(raw string) Ref {
	r := Ref{Raw: raw}

	body := raw
	if idx := strings.Index(body, "@v"); idx >= 0 {
		r.Version = body[idx+1:]
		body = body[:idx]
	}

	switch {
	case strings.HasPrefix(body, "std:"):
		r.Kind = RefStd
		r.Name = strings.TrimPrefix(body, "std:")
	case strings.HasPrefix(body, "ffi:"):
		r.Kind = RefFFI
		r.Name = strings.TrimPrefix(body, "ffi:")
	default:
		r.Kind = RefRelative
		r.Name = body
	}
	return r
}

// VersionValid reports whether the reference carries no pin, or a
// well-formed one.
func (r Ref) VersionValid() bool {
	return r.Version == "" || semver.IsValid(r.Version)
}

// Satisfies reports whether an available stdlib version (e.g. "v1.4.0")
// meets this reference's pin. An unpinned reference is always
// satisfied.
func (r Ref) Satisfies(available string) bool {
	if r.Version == "" {
		return true
	}
	return semver.Compare(available, r.Version) >= 0
}
