// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	cases := []struct {
		raw  string
		ok   bool
		want Path
	}{
		{"Scripts/Remote/file.lua", true, "Scripts/Remote/file.lua"},
		{`Scripts\Remote\file.lua`, true, "Scripts/Remote/file.lua"},
		{"a/./b", true, "a/b"},
		{"a/x/../b", true, "a/b"},
		{"", false, ""},
		{".", false, ""},
		{"/abs/file.lua", false, ""},
		{"..", false, ""},
		{"../escape.lua", false, ""},
		{"a/../../escape.lua", false, ""},
	}

	for _, c := range cases {
		p, err := ParsePath(c.raw)
		if !c.ok {
			assert.Error(t, err, c.raw)
			continue
		}
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.want, p)
	}
}

func TestPathParts(t *testing.T) {
	p := NewPath("Scripts", "Remote/Category", "file.lua")
	assert.Equal(t, Path("Scripts/Remote/Category/file.lua"), p)
	assert.Equal(t, []string{"Scripts", "Remote", "Category", "file.lua"}, p.Segments())
	assert.Equal(t, Path("Scripts/Remote/Category"), p.Dir())
	assert.Equal(t, "file.lua", p.Base())

	single := Path("file.lua")
	assert.Equal(t, Path(""), single.Dir())
}

func TestPathUnder(t *testing.T) {
	p := Path("Scripts/Remote/file.lua")
	want := filepath.Join("/root", "Scripts", "Remote", "file.lua")
	assert.Equal(t, want, p.Under("/root"))
}
