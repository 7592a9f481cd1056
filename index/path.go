// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Path is a forward-slash separated file path relative to an
// installation root. A Path never escapes the root: it is cleaned at
// construction and absolute paths or leading ".." segments are
// rejected.
type Path string

// NewPath builds a Path from individual segments. Segments containing
// separators are split further, empty and "." segments are discarded.
func NewPath(segments ...string) Path {
	p, _ := ParsePath(strings.Join(segments, "/"))
	return p
}

// ParsePath validates and normalizes a raw slash or backslash separated
// relative path.
func ParsePath(raw string) (Path, error) {
	cleaned := path.Clean(strings.ReplaceAll(raw, `\`, "/"))

	if cleaned == "." || cleaned == "" {
		return "", errors.New("empty path")
	}
	if strings.HasPrefix(cleaned, "/") {
		return "", errors.Errorf("path is not relative: %s", raw)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.Errorf("path escapes the installation root: %s", raw)
	}

	return Path(cleaned), nil
}

func (p Path) String() string { return string(p) }

// Segments returns the individual path components.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

// Dir returns the parent of p, or "" when p has a single segment.
func (p Path) Dir() Path {
	d := path.Dir(string(p))
	if d == "." {
		return ""
	}
	return Path(d)
}

// Base returns the last segment of p.
func (p Path) Base() string { return path.Base(string(p)) }

// Under resolves p against an absolute installation root using the
// native separator.
func (p Path) Under(root string) string {
	return filepath.Join(root, filepath.FromSlash(string(p)))
}
