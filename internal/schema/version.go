// Package schema classifies the engine version a compiled script was
// produced by and normalizes the record layout differences between versions.
package schema

import (
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/pickle"
	"github.com/jiang0681/unrpyc/internal/rpyc"
)

// Family is a major engine line with its own pickle flavour.
type Family string

const (
	// FamilyRenPy7 files are pickled by Python 2.
	FamilyRenPy7 Family = "renpy7"
	// FamilyRenPy8 files are pickled by Python 3.
	FamilyRenPy8 Family = "renpy8"
)

// Version is an engine release.
type Version struct {
	Major, Minor, Patch int
}

var (
	// MinSupported is the oldest release this decompiler handles.
	MinSupported = Version{7, 0, 0}
	// InitOffsetThreshold is the first release whose init priorities follow
	// the modern convention. Older files need the compatibility transform.
	InitOffsetThreshold = Version{7, 4, 0}
)

// scriptVersion is the constant the engine has stored in the data dict since
// long before 7.0. It carries no release information.
const scriptVersion = 5003000

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v Version) semver() string { return "v" + v.String() }

// Compare returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	return semver.Compare(v.semver(), o.semver())
}

// Less reports whether v is older than o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// ParseVersion parses "7.4.0", "v7.4" and similar.
func ParseVersion(s string) (Version, error) {
	if len(s) > 0 && s[0] != 'v' {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return Version{}, fmt.Errorf("schema: invalid version %q", s)
	}
	var v Version
	canon := semver.Canonical(s)
	if _, err := fmt.Sscanf(canon, "v%d.%d.%d", &v.Major, &v.Minor, &v.Patch); err != nil {
		return Version{}, fmt.Errorf("schema: invalid version %q: %w", s, err)
	}
	return v, nil
}

// DecodeEngineVersion unpacks major*1_000_000 + minor*1_000 + patch.
func DecodeEngineVersion(n int64) Version {
	return Version{
		Major: int(n / 1_000_000),
		Minor: int(n / 1_000 % 1_000),
		Patch: int(n % 1_000),
	}
}

// Header is everything the adapter looks at to pick a schema.
type Header struct {
	Kind     rpyc.Kind
	Protocol int
	Python2  bool
	// Data is the first element of the pickled (data, statements) pair.
	Data *pickle.Dict
}

// HeaderOf extracts the header from a loaded pickle.
func HeaderOf(kind rpyc.Kind, res *pickle.Result) Header {
	h := Header{Kind: kind, Protocol: res.Protocol, Python2: res.Python2}
	if root, ok := res.Root.(*pickle.Tuple); ok {
		if d, ok := root.At(0).(*pickle.Dict); ok {
			h.Data = d
		}
	}
	return h
}

// Schema is the selected layout for one file. It does not change once
// detected.
type Schema struct {
	Version Version
	Family  Family
	Table   *Table
}

func unsupported(format string, args ...any) error {
	e := diag.Errorf(diag.StageVersion, diag.CodeUnsupportedVersion, format, args...)
	e.Help = "use the legacy branch of unrpyc for scripts older than Ren'Py " + MinSupported.String()
	return e
}

// Detect selects the schema for a file.
func Detect(h Header) (*Schema, error) {
	if h.Kind == rpyc.KindLegacy {
		return nil, unsupported("legacy container without slot table")
	}
	if h.Protocol < 2 {
		return nil, unsupported("pickle protocol %d predates Ren'Py %s", h.Protocol, MinSupported)
	}

	s := &Schema{Family: FamilyRenPy8, Version: Version{8, 0, 0}}
	if h.Python2 {
		s.Family, s.Version = FamilyRenPy7, Version{7, 0, 0}
	}

	if h.Data != nil {
		if raw, ok := h.Data.Get("version"); ok {
			if n, ok := raw.(int64); ok && n != scriptVersion && n >= 1_000_000 {
				v := DecodeEngineVersion(n)
				if v.Less(MinSupported) {
					return nil, unsupported("script compiled by Ren'Py %s", v)
				}
				// A release stamp from the other family is not trusted over the
				// pickle flavour.
				if v.Major == s.Version.Major {
					s.Version = v
				}
			}
		}
	}
	s.Table = TableFor(s.Family)
	return s, nil
}

// Compat reports whether the pre-threshold compatibility transforms apply.
func (s *Schema) Compat() bool {
	return s.Version.Less(InitOffsetThreshold)
}

// InitOffsetInference reports whether the emitter should infer an init
// offset. Below the threshold the heuristic is gated by the caller's flag;
// from the threshold on it always runs.
func (s *Schema) InitOffsetInference(flag bool) bool {
	if s.Compat() {
		return flag
	}
	return true
}
