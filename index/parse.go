// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseError describes a malformed index document. A remote whose index
// fails to parse is skipped; the rest of the transaction proceeds.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

func parseErrorf(format string, args ...interface{}) *ParseError {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

// Wire layout of the version 1 index format.
type xmlIndex struct {
	XMLName    xml.Name      `xml:"index"`
	Version    string        `xml:"version,attr"`
	Categories []xmlCategory `xml:"category"`
	Metadata   *xmlMetadata  `xml:"metadata"`
}

type xmlCategory struct {
	Name     string       `xml:"name,attr"`
	Packages []xmlPackage `xml:"reapack"`
}

type xmlPackage struct {
	Name     string       `xml:"name,attr"`
	Type     string       `xml:"type,attr"`
	Versions []xmlVersion `xml:"version"`
}

type xmlVersion struct {
	Name      string      `xml:"name,attr"`
	Author    string      `xml:"author,attr"`
	Time      string      `xml:"time,attr"`
	Changelog string      `xml:"changelog"`
	Sources   []xmlSource `xml:"source"`
}

type xmlSource struct {
	Platform string `xml:"platform,attr"`
	File     string `xml:"file,attr"`
	URL      string `xml:",chardata"`
}

type xmlMetadata struct {
	Links []xmlLink `xml:"link"`
}

type xmlLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
	Text string `xml:",chardata"`
}

// Parse decodes the raw bytes of a downloaded index. The name is the
// remote's configured name, not taken from the document. Unknown
// package types and categories or packages left empty after filtering
// are dropped silently; structural problems (wrong root element,
// missing or unsupported format version, malformed version names,
// sources without a URL) fail with a *ParseError.
func Parse(name string, data []byte) (*Index, error) {
	var doc xmlIndex
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, parseErrorf("invalid index: %v", err)
	}

	if doc.Version == "" {
		return nil, parseErrorf("missing index version")
	}
	format, err := strconv.Atoi(doc.Version)
	if err != nil {
		return nil, parseErrorf("invalid index version: %q", doc.Version)
	}

	switch format {
	case 1:
		return loadV1(name, &doc)
	default:
		return nil, parseErrorf("unsupported index version: %d", format)
	}
}

func loadV1(name string, doc *xmlIndex) (*Index, error) {
	ri, err := New(name)
	if err != nil {
		return nil, parseErrorf("%v", err)
	}

	for _, xcat := range doc.Categories {
		cat, err := NewCategory(xcat.Name, ri)
		if err != nil {
			return nil, parseErrorf("%v", err)
		}

		for _, xpkg := range xcat.Packages {
			pkg, err := NewPackage(TypeFor(xpkg.Type), xpkg.Name, cat)
			if err != nil {
				return nil, parseErrorf("%v", err)
			}

			for _, xver := range xpkg.Versions {
				ver, err := NewVersion(xver.Name, pkg)
				if err != nil {
					return nil, parseErrorf("package %s: %v", pkg.FullName(), err)
				}

				ver.SetAuthor(xver.Author)
				ver.SetChangelog(xver.Changelog)
				if t, err := time.Parse(time.RFC3339, xver.Time); err == nil {
					ver.SetTime(t)
				}

				for _, xsrc := range xver.Sources {
					src, err := NewSource(PlatformFor(xsrc.Platform), xsrc.File, strings.TrimSpace(xsrc.URL), ver)
					if err != nil {
						return nil, parseErrorf("version %s: %v", ver.FullName(), err)
					}
					if err := ver.AddSource(src); err != nil {
						return nil, parseErrorf("version %s: %v", ver.FullName(), err)
					}
				}

				if err := pkg.AddVersion(ver); err != nil {
					return nil, parseErrorf("%v", err)
				}
			}

			if err := cat.AddPackage(pkg); err != nil {
				return nil, parseErrorf("%v", err)
			}
		}

		if err := ri.AddCategory(cat); err != nil {
			return nil, parseErrorf("%v", err)
		}
	}

	if doc.Metadata != nil {
		for _, xlink := range doc.Metadata.Links {
			typ := WebsiteLink
			if xlink.Rel == "donation" {
				typ = DonationLink
			}
			ri.AddLink(typ, Link{Name: xlink.Text, URL: xlink.Href})
		}
	}

	return ri, nil
}
