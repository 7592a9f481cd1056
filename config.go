// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reapack

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/joshuaword2alt/reapack/internal/fs"
)

// Remote is a configured package repository: a unique name and the URL
// of its index document.
type Remote struct {
	Name    string `toml:"name"`
	URL     string `toml:"url"`
	Enabled bool   `toml:"enabled"`
}

// Validate checks the remote's name and URL. Names share a character
// set with file names since the index is cached under the remote name;
// URLs must be absolute http(s).
func (r Remote) Validate() error {
	if r.Name == "" {
		return errors.New("empty remote name")
	}
	for _, c := range r.Name {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			continue
		}
		switch c {
		case ' ', '.', '_', '-':
		default:
			return errors.Errorf("invalid remote name: %s", r.Name)
		}
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid remote url: %s", r.URL)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Errorf("remote url is not absolute http(s): %s", r.URL)
	}
	return nil
}

// General holds the top-level settings of the configuration file.
type General struct {
	// Root is the installation root; empty means DefaultRoot.
	Root string `toml:"root"`

	// Concurrency bounds parallel downloads; zero means the built-in
	// default.
	Concurrency int `toml:"concurrency"`

	// Proxy overrides the proxy taken from the process environment.
	Proxy string `toml:"proxy"`

	// VerifyPeer toggles TLS certificate verification.
	VerifyPeer bool `toml:"verify_peer"`

	// RateLimit throttles outgoing requests per second; zero disables
	// throttling.
	RateLimit float64 `toml:"rate_limit"`
}

// Config is the decoded configuration file.
type Config struct {
	General General  `toml:"general"`
	Remotes []Remote `toml:"remotes"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		General: General{VerifyPeer: true},
	}
}

// LoadConfig reads the TOML configuration at path. A missing file
// yields the defaults rather than an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %s", path)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %s", path)
	}

	for _, r := range cfg.Remotes {
		if err := r.Validate(); err != nil {
			return nil, errors.Wrapf(err, "invalid config %s", path)
		}
	}
	return cfg, nil
}

// Write atomically persists the configuration to path.
func (c *Config) Write(path string) error {
	data, err := toml.Marshal(*c)
	if err != nil {
		return errors.Wrap(err, "cannot encode config")
	}
	if err := fs.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return fs.WriteFileAtomic(path, data, 0o644)
}

// Remote returns the named remote.
func (c *Config) Remote(name string) (Remote, bool) {
	for _, r := range c.Remotes {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Remote{}, false
}

// AddRemote validates and adds a remote; the name must be unused.
func (c *Config) AddRemote(r Remote) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, ok := c.Remote(r.Name); ok {
		return errors.Errorf("remote %s already exists", r.Name)
	}
	c.Remotes = append(c.Remotes, r)
	return nil
}

// RemoveRemote deletes the named remote from the configuration. It
// does not uninstall the remote's packages.
func (c *Config) RemoveRemote(name string) error {
	for i, r := range c.Remotes {
		if strings.EqualFold(r.Name, name) {
			c.Remotes = append(c.Remotes[:i], c.Remotes[i+1:]...)
			return nil
		}
	}
	return errors.Errorf("no remote named %s", name)
}

// EnabledRemotes returns the remotes eligible for synchronization.
func (c *Config) EnabledRemotes() []Remote {
	var out []Remote
	for _, r := range c.Remotes {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}
