// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/joshuaword2alt/reapack/internal/fs"
)

// ErrNotFound reports that no index has been downloaded yet for the
// requested remote.
var ErrNotFound = errors.New("index not found")

// Store persists downloaded indexes on disk, one XML file per remote,
// and memoizes the parsed form so repeated loads within a process do
// not re-read and re-parse the document.
type Store struct {
	dir    string
	parsed *gocache.Cache
}

// NewStore creates the store directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := fs.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{
		dir:    dir,
		parsed: gocache.New(15*time.Minute, 30*time.Minute),
	}, nil
}

// Path returns the on-disk location of the named remote's index.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, sanitizeName(name)+".xml")
}

// Read returns the raw bytes of the named remote's cached index, or
// ErrNotFound when it has never been written.
func (s *Store) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read index for %s", name)
	}
	return data, nil
}

// Write atomically replaces the named remote's cached index and
// invalidates the memoized parse.
func (s *Store) Write(name string, data []byte) error {
	if err := fs.WriteFileAtomic(s.Path(name), data, 0o644); err != nil {
		return errors.Wrapf(err, "cannot write index for %s", name)
	}
	s.parsed.Delete(name)
	return nil
}

// Load returns the parsed index for the named remote, reading and
// parsing the cached file on a memoization miss.
func (s *Store) Load(name string) (*Index, error) {
	if cached, ok := s.parsed.Get(name); ok {
		return cached.(*Index), nil
	}

	data, err := s.Read(name)
	if err != nil {
		return nil, err
	}

	ri, err := Parse(name, data)
	if err != nil {
		return nil, err
	}

	s.parsed.Set(name, ri, gocache.DefaultExpiration)
	return ri, nil
}

// sanitizeName keeps remote names filesystem-safe when used as file
// names.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, name)
}
