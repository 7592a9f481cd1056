// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"sort"

	"github.com/pkg/errors"
)

// Type enumerates the package kinds this client understands. The set is
// extensible on the repository side; packages of a kind this client
// does not know are silently dropped at load time so that older clients
// keep working against newer indexes.
type Type int

const (
	UnknownType Type = iota
	ScriptType
	EffectType
	ExtensionType
	DataType
	ThemeType
)

// TypeFor maps the index attribute value to a Type.
func TypeFor(s string) Type {
	switch s {
	case "script":
		return ScriptType
	case "effect", "jsfx":
		return EffectType
	case "extension":
		return ExtensionType
	case "data":
		return DataType
	case "theme":
		return ThemeType
	default:
		return UnknownType
	}
}

func (t Type) String() string {
	switch t {
	case ScriptType:
		return "script"
	case EffectType:
		return "effect"
	case ExtensionType:
		return "extension"
	case DataType:
		return "data"
	case ThemeType:
		return "theme"
	default:
		return "unknown"
	}
}

// Category groups packages within an Index. A category that ends up
// with zero packages after load-time filtering is discarded by its
// Index.
type Category struct {
	index    *Index
	name     string
	packages []*Package
}

// NewCategory creates a category belonging to ri.
func NewCategory(name string, ri *Index) (*Category, error) {
	if name == "" {
		return nil, errors.New("empty category name")
	}
	return &Category{index: ri, name: name}, nil
}

// Index returns the owning index.
func (c *Category) Index() *Index { return c.index }

// Name returns the category name.
func (c *Category) Name() string { return c.name }

// FullName is "<index>/<category>".
func (c *Category) FullName() string {
	if c.index == nil {
		return c.name
	}
	return c.index.Name() + "/" + c.name
}

// AddPackage retains pkg unless it is of an unknown type or carries no
// versions; both are dropped without error for forward compatibility.
func (c *Category) AddPackage(pkg *Package) error {
	if pkg.category != c {
		return errors.New("package belongs to another category")
	}
	if pkg.typ == UnknownType || len(pkg.versions) == 0 {
		return nil
	}

	c.packages = append(c.packages, pkg)
	return nil
}

// Packages returns the retained packages.
func (c *Category) Packages() []*Package { return c.packages }

// Package describes one installable unit: a named, typed set of
// versions kept sorted ascending by version-name ordering.
type Package struct {
	category *Category
	typ      Type
	name     string
	versions []*Version
}

// NewPackage creates a package belonging to cat.
func NewPackage(typ Type, name string, cat *Category) (*Package, error) {
	if name == "" {
		return nil, errors.New("empty package name")
	}
	return &Package{category: cat, typ: typ, name: name}, nil
}

// Category returns the owning category.
func (p *Package) Category() *Category { return p.category }

// Type returns the package kind.
func (p *Package) Type() Type { return p.typ }

// Name returns the package name.
func (p *Package) Name() string { return p.name }

// FullName is "<index>/<category>/<package>".
func (p *Package) FullName() string {
	if p.category == nil {
		return p.name
	}
	return p.category.FullName() + "/" + p.name
}

// AddVersion retains ver, keeping the version list sorted. A version
// with zero sources is dropped without error.
func (p *Package) AddVersion(ver *Version) error {
	if ver.pkg != p {
		return errors.New("version belongs to another package")
	}
	if len(ver.sources) == 0 {
		return nil
	}

	i := sort.Search(len(p.versions), func(i int) bool {
		return p.versions[i].name.Compare(ver.name) >= 0
	})
	p.versions = append(p.versions, nil)
	copy(p.versions[i+1:], p.versions[i:])
	p.versions[i] = ver
	return nil
}

// Versions returns the retained versions sorted ascending.
func (p *Package) Versions() []*Version { return p.versions }

// Version returns the i-th version in ascending order, or nil.
func (p *Package) Version(i int) *Version {
	if i < 0 || i >= len(p.versions) {
		return nil
	}
	return p.versions[i]
}

// LastVersion returns the version with the greatest version name; this
// is the install target under the "latest" selection policy.
func (p *Package) LastVersion() *Version {
	if len(p.versions) == 0 {
		return nil
	}
	return p.versions[len(p.versions)-1]
}

// TargetLocation is the directory, relative to the installation root,
// that this package's files are installed under.
func (p *Package) TargetLocation() (Path, error) {
	if p.category == nil || p.category.index == nil {
		return "", errors.New("category or index is unset")
	}

	switch p.typ {
	case ScriptType:
		return NewPath("Scripts", p.category.index.Name(), p.category.Name()), nil
	case EffectType:
		return NewPath("Effects", p.category.index.Name(), p.category.Name()), nil
	case ExtensionType:
		return NewPath("UserPlugins"), nil
	case DataType:
		return NewPath("Data"), nil
	case ThemeType:
		return NewPath("ColorThemes"), nil
	default:
		return "", errors.New("unsupported package type")
	}
}
