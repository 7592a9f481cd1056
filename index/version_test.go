// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionName(t *testing.T) {
	cases := []struct {
		raw  string
		ok   bool
		want string
	}{
		{"1.0", true, "1.0"},
		{" 1.2 ", true, "1.2"},
		{"1.0rc2", true, "1.0rc2"},
		{"2", true, "2"},
		{"", false, ""},
		{"   ", false, ""},
		{"nodigits", false, ""},
	}

	for _, c := range cases {
		v, err := ParseVersionName(c.raw)
		if !c.ok {
			assert.Error(t, err, c.raw)
			continue
		}
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.want, v.String())
		assert.False(t, v.IsZero())
	}
}

func TestVersionNameOrdering(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.9", "1.10", -1},
		{"1.10", "1.9", 1},
		{"0.5", "1.10", -1},
		{"1.0", "1.0rc2", -1},
		{"1.0rc2", "1.0rc10", -1},
		{"2.0.1", "2.0.2", -1},
	}

	for _, c := range cases {
		a, err := ParseVersionName(c.a)
		require.NoError(t, err)
		b, err := ParseVersionName(c.b)
		require.NoError(t, err)

		assert.Equal(t, c.want, a.Compare(b), "%s vs %s", c.a, c.b)
		assert.Equal(t, -c.want, b.Compare(a), "%s vs %s", c.b, c.a)
	}
}

func TestVersionNameTextRoundTrip(t *testing.T) {
	v, err := ParseVersionName("1.10")
	require.NoError(t, err)

	text, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.10", string(text))

	var parsed VersionName
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Zero(t, v.Compare(parsed))

	var zero VersionName
	require.NoError(t, zero.UnmarshalText(nil))
	assert.True(t, zero.IsZero())
}

// foreignPlatform returns a platform that never matches the test host.
func foreignPlatform() Platform {
	if CurrentPlatform() == WindowsPlatform {
		return LinuxPlatform
	}
	return WindowsPlatform
}

func TestVersionSourcesAndFiles(t *testing.T) {
	ri, err := New("Remote")
	require.NoError(t, err)
	cat, err := NewCategory("Category", ri)
	require.NoError(t, err)
	pkg, err := NewPackage(ScriptType, "pkg.lua", cat)
	require.NoError(t, err)
	ver, err := NewVersion("1.0", pkg)
	require.NoError(t, err)

	src, err := NewSource(GenericPlatform, "", "https://example.com/pkg.lua", ver)
	require.NoError(t, err)
	require.NoError(t, ver.AddSource(src))

	extra, err := NewSource(GenericPlatform, "b/extra.lua", "https://example.com/extra.lua", ver)
	require.NoError(t, err)
	require.NoError(t, ver.AddSource(extra))

	foreign, err := NewSource(foreignPlatform(), "never.lua", "https://example.com/never.lua", ver)
	require.NoError(t, err)
	require.NoError(t, ver.AddSource(foreign))

	assert.Len(t, ver.Sources(), 2, "foreign-platform source must be dropped")
	assert.Equal(t, []Path{
		"Scripts/Remote/Category/b/extra.lua",
		"Scripts/Remote/Category/pkg.lua",
	}, ver.Files())

	assert.Equal(t, "Remote/Category/pkg.lua v1.0", ver.FullName())
	assert.Equal(t, "pkg.lua", src.File(), "empty file attribute falls back to the package name")
}

func TestNewSourceRequiresURL(t *testing.T) {
	ri, _ := New("Remote")
	cat, _ := NewCategory("Category", ri)
	pkg, _ := NewPackage(ScriptType, "pkg.lua", cat)
	ver, _ := NewVersion("1.0", pkg)

	_, err := NewSource(GenericPlatform, "file.lua", "", ver)
	assert.Error(t, err)
}
