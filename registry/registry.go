// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry is the durable record of installed packages: which
// version is on disk and which files it owns. It is the single source
// of truth the filesystem state must be derivable from.
//
// Mutations are staged in memory by Push, Forget and SetPinned and made
// durable by Commit in one database transaction; a failed Commit leaves
// the prior durable state fully intact.
package registry

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/joshuaword2alt/reapack/index"
	"github.com/joshuaword2alt/reapack/internal/fs"
)

// ErrLocked reports that another process holds the registry open.
var ErrLocked = errors.New("registry is locked by another process")

// PersistenceError wraps a failed Commit. Staged mutations are kept so
// the commit may be retried; the durable state is unchanged.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "registry commit failed: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Status describes an entry relative to the latest known version of its
// package. Only Query derives it; entries returned without a live
// package to compare against carry Unknown.
type Status int

const (
	Unknown Status = iota
	Uninstalled
	UpToDate
	UpdateAvailable
	Obsolete
)

func (s Status) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case UpToDate:
		return "up to date"
	case UpdateAvailable:
		return "update available"
	case Obsolete:
		return "obsolete"
	default:
		return "unknown"
	}
}

// Entry is one row of the registry: an installed package, its version
// and the relative paths it owns.
type Entry struct {
	Remote   string            `json:"remote"`
	Category string            `json:"category"`
	Package  string            `json:"package"`
	Type     index.Type        `json:"type"`
	Version  index.VersionName `json:"version"`
	Pinned   bool              `json:"pinned"`
	Files    []index.Path      `json:"files"`

	// Status is derived at query time and never persisted.
	Status Status `json:"-"`
}

// Key is the package identity this entry is stored under.
func (e Entry) Key() string {
	return e.Remote + "/" + e.Category + "/" + e.Package
}

// Installed reports whether the entry exists on file.
func (e Entry) Installed() bool { return e.Package != "" }

// FullName is the display name "<remote>/<category>/<package>".
func (e Entry) FullName() string { return e.Key() }

const (
	dbFile   = "registry.db"
	lockFile = "registry.lock"
)

var (
	bucketEntries = []byte("entries")
	bucketFiles   = []byte("files")
)

type mutationKind int

const (
	mutationPut mutationKind = iota
	mutationDelete
	mutationPin
)

type mutation struct {
	kind   mutationKind
	key    string
	entry  Entry
	pinned bool
}

// Registry is a bolt-backed store guarded by a file lock so that only
// one process mutates it at a time.
type Registry struct {
	db     *bolt.DB
	fl     *flock.Flock
	logger *log.Logger
	staged []mutation
}

// Open acquires the exclusive registry lock under dir and opens the
// database, creating both as needed. ErrLocked is returned when another
// process already holds the lock.
func Open(dir string, logger *log.Logger) (*Registry, error) {
	if err := fs.EnsureDir(dir); err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(dir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "cannot acquire registry lock")
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := bolt.Open(filepath.Join(dir, dbFile), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		fl.Unlock()
		return nil, errors.Wrap(err, "cannot open registry database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketFiles} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		fl.Unlock()
		return nil, errors.Wrap(err, "cannot initialize registry database")
	}

	return &Registry{db: db, fl: fl, logger: logger}, nil
}

// Close releases the database and the process lock. Staged,
// uncommitted mutations are discarded.
func (r *Registry) Close() error {
	err := r.db.Close()
	if uerr := r.fl.Unlock(); err == nil {
		err = uerr
	}
	return errors.Wrap(err, "cannot close registry")
}

// Query returns the entry for pkg, deriving its status against the
// package's latest version. Packages with no entry on file yield a
// zero entry with status Uninstalled.
func (r *Registry) Query(pkg *index.Package) Entry {
	entry := Entry{
		Remote:   pkg.Category().Index().Name(),
		Category: pkg.Category().Name(),
		Package:  pkg.Name(),
		Type:     pkg.Type(),
		Status:   Uninstalled,
	}

	stored, ok := r.get(entry.Key())
	if !ok {
		return entry
	}

	stored.Status = UpToDate
	if last := pkg.LastVersion(); last == nil {
		stored.Status = Obsolete
	} else if !stored.Pinned && stored.Version.Compare(last.Name()) < 0 {
		stored.Status = UpdateAvailable
	}
	return stored
}

// QueryAll returns every entry belonging to the named remote, with
// status Unknown; use Query to derive a status against a live package.
func (r *Registry) QueryAll(remote string) []Entry {
	return r.scan(remote + "/")
}

// All returns every entry in the registry, with status Unknown.
func (r *Registry) All() []Entry {
	return r.scan("")
}

// GetFiles returns the relative paths owned by the entry.
func (r *Registry) GetFiles(entry Entry) []index.Path {
	files := make([]index.Path, len(entry.Files))
	copy(files, entry.Files)
	return files
}

// Owner returns the key of the entry owning the given path at the last
// committed state.
func (r *Registry) Owner(p index.Path) (string, bool) {
	var owner string
	r.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketFiles).Get([]byte(p)); v != nil {
			owner = string(v)
		}
		return nil
	})
	return owner, owner != ""
}

// Push stages an entry update for the package owning ver. The pinned
// flag of an existing entry is preserved.
func (r *Registry) Push(ver *index.Version) {
	pkg := ver.Package()
	entry := Entry{
		Remote:   pkg.Category().Index().Name(),
		Category: pkg.Category().Name(),
		Package:  pkg.Name(),
		Type:     pkg.Type(),
		Version:  ver.Name(),
		Files:    ver.Files(),
	}
	if stored, ok := r.get(entry.Key()); ok {
		entry.Pinned = stored.Pinned
	}

	r.staged = append(r.staged, mutation{kind: mutationPut, key: entry.Key(), entry: entry})
}

// Forget stages the deletion of an entry.
func (r *Registry) Forget(entry Entry) {
	r.staged = append(r.staged, mutation{kind: mutationDelete, key: entry.Key()})
}

// SetPinned stages a change of the entry's pinned flag. Pinned entries
// are held at their installed version during synchronization.
func (r *Registry) SetPinned(entry Entry, pinned bool) {
	r.staged = append(r.staged, mutation{kind: mutationPin, key: entry.Key(), pinned: pinned})
}

// Pending reports the number of staged, uncommitted mutations.
func (r *Registry) Pending() int { return len(r.staged) }

// Commit applies every staged mutation in order inside a single
// database transaction. On failure the staged set is kept and a
// *PersistenceError is returned; the durable state is untouched.
func (r *Registry) Commit() error {
	if len(r.staged) == 0 {
		return nil
	}

	err := r.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		files := tx.Bucket(bucketFiles)

		for _, m := range r.staged {
			switch m.kind {
			case mutationPut:
				if err := forgetFiles(entries, files, m.key); err != nil {
					return err
				}
				data, err := json.Marshal(m.entry)
				if err != nil {
					return errors.Wrapf(err, "cannot encode entry %s", m.key)
				}
				if err := entries.Put([]byte(m.key), data); err != nil {
					return err
				}
				for _, f := range m.entry.Files {
					if err := files.Put([]byte(f), []byte(m.key)); err != nil {
						return err
					}
				}

			case mutationDelete:
				if err := forgetFiles(entries, files, m.key); err != nil {
					return err
				}
				if err := entries.Delete([]byte(m.key)); err != nil {
					return err
				}

			case mutationPin:
				data := entries.Get([]byte(m.key))
				if data == nil {
					return errors.Errorf("no entry on file for %s", m.key)
				}
				var entry Entry
				if err := json.Unmarshal(data, &entry); err != nil {
					return errors.Wrapf(err, "cannot decode entry %s", m.key)
				}
				entry.Pinned = m.pinned
				updated, err := json.Marshal(entry)
				if err != nil {
					return errors.Wrapf(err, "cannot encode entry %s", m.key)
				}
				if err := entries.Put([]byte(m.key), updated); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Err: err}
	}

	if r.logger != nil {
		r.logger.Debug("registry committed", "mutations", len(r.staged))
	}
	r.staged = nil
	return nil
}

// forgetFiles drops the path ownership rows of the entry stored under
// key, if any. A row whose current owner is a different entry is left
// alone: the path already changed hands earlier in the same commit.
func forgetFiles(entries, files *bolt.Bucket, key string) error {
	data := entries.Get([]byte(key))
	if data == nil {
		return nil
	}

	var old Entry
	if err := json.Unmarshal(data, &old); err != nil {
		return errors.Wrapf(err, "cannot decode entry %s", key)
	}
	for _, f := range old.Files {
		if owner := files.Get([]byte(f)); owner == nil || string(owner) != key {
			continue
		}
		if err := files.Delete([]byte(f)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) get(key string) (Entry, bool) {
	var entry Entry
	var found bool

	r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			if r.logger != nil {
				r.logger.Error("corrupt registry entry", "key", key, "err", err)
			}
			return nil
		}
		found = true
		return nil
	})
	return entry, found
}

func (r *Registry) scan(prefix string) []Entry {
	var out []Entry

	r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		pre := []byte(prefix)
		for k, v := c.Seek(pre); k != nil && bytes.HasPrefix(k, pre); k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				if r.logger != nil {
					r.logger.Error("corrupt registry entry", "key", string(k), "err", err)
				}
				continue
			}
			out = append(out, entry)
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
