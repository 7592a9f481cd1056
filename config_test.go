// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reapack

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteValidate(t *testing.T) {
	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{"ReaTeam Scripts", "https://example.com/index.xml", true},
		{"X-Raym_1.0", "http://example.com/index.xml", true},
		{"", "https://example.com/index.xml", false},
		{"bad/name", "https://example.com/index.xml", false},
		{"name", "", false},
		{"name", "ftp://example.com/index.xml", false},
		{"name", "relative/path.xml", false},
		{"name", "://bad", false},
	}

	for _, c := range cases {
		err := Remote{Name: c.name, URL: c.url, Enabled: true}.Validate()
		if c.ok {
			assert.NoError(t, err, "%s %s", c.name, c.url)
		} else {
			assert.Error(t, err, "%s %s", c.name, c.url)
		}
	}
}

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.True(t, cfg.General.VerifyPeer)
	assert.Empty(t, cfg.Remotes)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reapack.toml")

	cfg := DefaultConfig()
	cfg.General.Concurrency = 5
	require.NoError(t, cfg.AddRemote(Remote{
		Name:    "ReaTeam",
		URL:     "https://example.com/index.xml",
		Enabled: true,
	}))
	require.NoError(t, cfg.AddRemote(Remote{
		Name: "Disabled",
		URL:  "https://example.com/other.xml",
	}))
	require.NoError(t, cfg.Write(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.General.Concurrency)
	require.Len(t, loaded.Remotes, 2)

	remote, ok := loaded.Remote("reateam")
	require.True(t, ok, "remote lookup is case-insensitive")
	assert.Equal(t, "https://example.com/index.xml", remote.URL)

	enabled := loaded.EnabledRemotes()
	require.Len(t, enabled, 1)
	assert.Equal(t, "ReaTeam", enabled[0].Name)
}

func TestAddRemoteRejectsDuplicatesAndInvalid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.AddRemote(Remote{Name: "A", URL: "https://example.com/a.xml"}))

	assert.Error(t, cfg.AddRemote(Remote{Name: "a", URL: "https://example.com/b.xml"}),
		"names are unique ignoring case")
	assert.Error(t, cfg.AddRemote(Remote{Name: "bad/name", URL: "https://example.com/c.xml"}))
}

func TestRemoveRemote(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.AddRemote(Remote{Name: "A", URL: "https://example.com/a.xml"}))

	require.NoError(t, cfg.RemoveRemote("A"))
	assert.Empty(t, cfg.Remotes)
	assert.Error(t, cfg.RemoveRemote("A"))
}

func TestLoadConfigRejectsInvalidRemote(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reapack.toml")

	cfg := DefaultConfig()
	cfg.Remotes = append(cfg.Remotes, Remote{Name: "bad/name", URL: "https://example.com/a.xml"})
	require.NoError(t, cfg.Write(path))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
