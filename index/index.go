// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index models the contents of a remote package repository: an
// immutable-after-load graph of categories, packages, versions and
// download sources, parsed from the repository's XML index.
package index

import (
	"net/url"

	"github.com/pkg/errors"
)

// LinkType distinguishes the metadata links an index may carry.
type LinkType int

const (
	WebsiteLink LinkType = iota
	DonationLink
)

// Link is a labelled URL from the index metadata.
type Link struct {
	Name string
	URL  string
}

// Index is the parsed description of one remote repository. It owns its
// whole category/package/version graph; the graph is immutable once
// loading completes and may be shared read-only between transactions.
type Index struct {
	name       string
	categories []*Category
	packages   []*Package
	links      map[LinkType][]Link
}

// New creates an empty index. The name identifies the remote and must
// be non-empty.
func New(name string) (*Index, error) {
	if name == "" {
		return nil, errors.New("empty index name")
	}
	return &Index{name: name, links: make(map[LinkType][]Link)}, nil
}

// Name returns the remote name.
func (ri *Index) Name() string { return ri.name }

// AddCategory retains cat unless it ended up with zero packages after
// load-time filtering.
func (ri *Index) AddCategory(cat *Category) error {
	if cat.index != ri {
		return errors.New("category belongs to another index")
	}
	if len(cat.packages) == 0 {
		return nil
	}

	ri.categories = append(ri.categories, cat)
	ri.packages = append(ri.packages, cat.packages...)
	return nil
}

// Categories returns the retained categories.
func (ri *Index) Categories() []*Category { return ri.categories }

// Packages returns every package across all categories.
func (ri *Index) Packages() []*Package { return ri.packages }

// Find returns the package of the given category and name, or nil.
func (ri *Index) Find(category, name string) *Package {
	for _, pkg := range ri.packages {
		if pkg.Name() == name && pkg.Category().Name() == category {
			return pkg
		}
	}
	return nil
}

// AddLink retains a metadata link if its URL uses an allowed scheme;
// anything that is not plain http(s) is discarded.
func (ri *Index) AddLink(typ LinkType, link Link) {
	u, err := url.Parse(link.URL)
	if err != nil {
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}
	if link.Name == "" {
		link.Name = link.URL
	}

	ri.links[typ] = append(ri.links[typ], link)
}

// Links returns the retained links of the given type.
func (ri *Index) Links(typ LinkType) []Link { return ri.links[typ] }
