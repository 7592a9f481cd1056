// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

var versionSegmentRx = regexp.MustCompile(`\d+`)

// VersionName is a comparable package version identifier. Ordering is
// semantic rather than lexicographic: when both operands are valid
// semantic versions they compare as such, otherwise comparison falls
// back to the numeric segments embedded in the string, so "1.10"
// orders after "1.9" and "1.0rc2" after "1.0".
type VersionName struct {
	raw      string
	sv       *semver.Version
	segments []uint64
}

// ParseVersionName validates and parses a raw version string. It fails
// on empty input and on strings carrying no numeric segment at all.
func ParseVersionName(raw string) (VersionName, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return VersionName{}, errors.New("empty version name")
	}

	matches := versionSegmentRx.FindAllString(raw, -1)
	if matches == nil {
		return VersionName{}, errors.Errorf("invalid version name: %s", raw)
	}

	segments := make([]uint64, len(matches))
	for i, m := range matches {
		n, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return VersionName{}, errors.Wrapf(err, "invalid version name: %s", raw)
		}
		segments[i] = n
	}

	v := VersionName{raw: raw, segments: segments}
	if sv, err := semver.NewVersion(raw); err == nil {
		v.sv = sv
	}
	return v, nil
}

func (v VersionName) String() string { return v.raw }

// IsZero reports whether v is the zero VersionName (no version at all).
func (v VersionName) IsZero() bool { return v.raw == "" }

// Compare returns -1, 0 or +1 depending on whether v orders before,
// equal to or after o.
func (v VersionName) Compare(o VersionName) int {
	if v.sv != nil && o.sv != nil {
		return v.sv.Compare(o.sv)
	}

	for i := 0; i < len(v.segments) || i < len(o.segments); i++ {
		var a, b uint64
		if i < len(v.segments) {
			a = v.segments[i]
		}
		if i < len(o.segments) {
			b = o.segments[i]
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler, letting VersionName
// round-trip through the registry's stored entries.
func (v VersionName) MarshalText() ([]byte, error) {
	return []byte(v.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *VersionName) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*v = VersionName{}
		return nil
	}
	parsed, err := ParseVersionName(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Version is one release of a Package: a VersionName, optional
// metadata, and the sources to download. A Version with zero sources is
// dropped by its owning Package.
type Version struct {
	pkg       *Package
	name      VersionName
	author    string
	changelog string
	time      time.Time
	sources   []*Source
	files     map[Path]struct{}
}

// NewVersion creates a Version belonging to pkg. The raw version name
// must parse.
func NewVersion(raw string, pkg *Package) (*Version, error) {
	name, err := ParseVersionName(raw)
	if err != nil {
		return nil, err
	}
	return &Version{pkg: pkg, name: name, files: make(map[Path]struct{})}, nil
}

// Package returns the owning package.
func (v *Version) Package() *Package { return v.pkg }

// Name returns the parsed version name.
func (v *Version) Name() VersionName { return v.name }

// FullName is the package full name suffixed with the version, e.g.
// "Remote/Category/file.lua v1.2".
func (v *Version) FullName() string {
	if v.pkg == nil {
		return "v" + v.name.String()
	}
	return v.pkg.FullName() + " v" + v.name.String()
}

func (v *Version) Author() string        { return v.author }
func (v *Version) SetAuthor(a string)    { v.author = a }
func (v *Version) Changelog() string     { return v.changelog }
func (v *Version) SetChangelog(c string) { v.changelog = c }
func (v *Version) Time() time.Time       { return v.time }
func (v *Version) SetTime(t time.Time)   { v.time = t }

// AddSource attaches a download source. Sources declared for a foreign
// platform are silently discarded, mirroring how unknown package types
// are dropped at load time.
func (v *Version) AddSource(src *Source) error {
	if src.version != v {
		return errors.New("source belongs to another version")
	}
	if !src.platform.Runs(CurrentPlatform()) {
		return nil
	}

	target, err := src.TargetPath()
	if err != nil {
		return err
	}

	v.sources = append(v.sources, src)
	v.files[target] = struct{}{}
	return nil
}

// Sources returns the retained sources in declaration order.
func (v *Version) Sources() []*Source { return v.sources }

// Files returns the set of target paths this version installs.
func (v *Version) Files() []Path {
	files := make([]Path, 0, len(v.files))
	for f := range v.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })
	return files
}
