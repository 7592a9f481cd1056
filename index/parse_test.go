// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = `<?xml version="1.0" encoding="utf-8"?>
<index version="1" name="Ignored">
  <category name="Category">
    <reapack name="pkg.lua" type="script">
      <version name="1.0" author="someone" time="2024-03-01T12:00:00Z">
        <changelog>initial release</changelog>
        <source platform="all">
          https://example.com/pkg-1.0.lua
        </source>
      </version>
      <version name="1.1">
        <source>https://example.com/pkg-1.1.lua</source>
        <source file="helper.lua">https://example.com/helper.lua</source>
      </version>
    </reapack>
    <reapack name="mystery" type="frobnicator">
      <version name="1.0">
        <source>https://example.com/mystery</source>
      </version>
    </reapack>
  </category>
  <category name="Empty"/>
  <metadata>
    <link rel="website" href="https://example.com">Example</link>
    <link rel="donation" href="https://example.com/donate">Donate</link>
    <link rel="website" href="ftp://example.com/ignored">Bad scheme</link>
  </metadata>
</index>`

func TestParse(t *testing.T) {
	ri, err := Parse("Remote", []byte(sampleIndex))
	require.NoError(t, err)

	assert.Equal(t, "Remote", ri.Name(), "remote name comes from configuration, not the document")
	require.Len(t, ri.Categories(), 1, "empty category and unknown-type package are dropped")
	require.Len(t, ri.Packages(), 1)

	pkg := ri.Packages()[0]
	assert.Equal(t, ScriptType, pkg.Type())
	require.Len(t, pkg.Versions(), 2)

	first := pkg.Version(0)
	assert.Equal(t, "1.0", first.Name().String())
	assert.Equal(t, "someone", first.Author())
	assert.Equal(t, "initial release", first.Changelog())
	assert.False(t, first.Time().IsZero())
	require.Len(t, first.Sources(), 1)
	assert.Equal(t, "https://example.com/pkg-1.0.lua", first.Sources()[0].URL(),
		"source URL is trimmed of surrounding whitespace")

	last := pkg.LastVersion()
	assert.Equal(t, "1.1", last.Name().String())
	assert.Len(t, last.Sources(), 2)
	assert.Equal(t, []Path{
		"Scripts/Remote/Category/helper.lua",
		"Scripts/Remote/Category/pkg.lua",
	}, last.Files())

	assert.Len(t, ri.Links(WebsiteLink), 1, "non-http(s) links are dropped")
	require.Len(t, ri.Links(DonationLink), 1)
	assert.Equal(t, "Donate", ri.Links(DonationLink)[0].Name)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"garbage", "not xml at all"},
		{"wrong root", `<html></html>`},
		{"missing version", `<index></index>`},
		{"invalid version", `<index version="abc"></index>`},
		{"unsupported version", `<index version="2"></index>`},
		{
			"source without url",
			`<index version="1"><category name="c"><reapack name="p" type="script">` +
				`<version name="1.0"><source></source></version></reapack></category></index>`,
		},
		{
			"invalid version name",
			`<index version="1"><category name="c"><reapack name="p" type="script">` +
				`<version name="nodigits"><source>https://example.com/p</source></version></reapack></category></index>`,
		},
		{
			"empty category name",
			`<index version="1"><category><reapack name="p" type="script">` +
				`<version name="1.0"><source>https://example.com/p</source></version></reapack></category></index>`,
		},
	}

	for _, c := range cases {
		_, err := Parse("Remote", []byte(c.doc))
		require.Error(t, err, c.name)

		var perr *ParseError
		assert.ErrorAs(t, err, &perr, c.name)
	}
}
