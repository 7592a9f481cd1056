// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/joshuaword2alt/reapack/index"
	"github.com/joshuaword2alt/reapack/internal/fs"
	"github.com/joshuaword2alt/reapack/registry"
)

// Task is one staged filesystem operation. Tasks accumulate work in a
// staging area while downloads run; Commit makes the work visible under
// the installation root and Rollback discards it. Neither is called
// concurrently.
type Task interface {
	Commit() error
	Rollback()
}

type stagedFile struct {
	temp   string
	target index.Path
}

// InstallTask installs or updates one package version. Downloaded
// sources are staged as temporary files; Commit moves them into place
// and deletes files the previous version owned that the new one no
// longer provides.
type InstallTask struct {
	version  *index.Version
	previous registry.Entry
	root     string
	staging  string
	onCommit func()

	staged []stagedFile
	failed bool
}

// NewInstallTask stages an install of ver over the previous entry.
// The staging directory must live on the same filesystem as root for
// commits to be plain renames.
func NewInstallTask(ver *index.Version, previous registry.Entry, root, staging string) *InstallTask {
	return &InstallTask{version: ver, previous: previous, root: root, staging: staging}
}

// Version returns the version being installed.
func (t *InstallTask) Version() *index.Version { return t.version }

// Previous returns the registry entry this install replaces; a zero
// entry for a fresh install.
func (t *InstallTask) Previous() registry.Entry { return t.previous }

// OnCommit registers a callback fired once after a successful Commit.
func (t *InstallTask) OnCommit(fn func()) { t.onCommit = fn }

// Fail marks the task as unusable; a failed task is rolled back instead
// of committed.
func (t *InstallTask) Fail() { t.failed = true }

// Failed reports whether any of the task's downloads failed.
func (t *InstallTask) Failed() bool { return t.failed }

// SaveDownload stages the fetched contents of src as a temporary file.
func (t *InstallTask) SaveDownload(src *index.Source, data []byte) error {
	target, err := src.TargetPath()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(t.staging, "install-")
	if err != nil {
		return errors.Wrap(err, "cannot create staging file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "cannot stage %s", target)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "cannot stage %s", target)
	}

	t.staged = append(t.staged, stagedFile{temp: tmp.Name(), target: target})
	return nil
}

// Commit moves every staged file under the root, then removes files of
// the previous version the new one no longer provides. Leftover removal
// is best-effort; a failed move aborts the commit.
func (t *InstallTask) Commit() error {
	for i, f := range t.staged {
		dst := f.target.Under(t.root)
		if err := fs.EnsureDir(filepath.Dir(dst)); err != nil {
			t.staged = t.staged[i:]
			return err
		}
		if err := fs.RenameWithFallback(f.temp, dst); err != nil {
			t.staged = t.staged[i:]
			return errors.Wrapf(err, "cannot install %s", f.target)
		}
	}
	t.staged = nil

	keep := make(map[index.Path]struct{})
	for _, f := range t.version.Files() {
		keep[f] = struct{}{}
	}
	for _, old := range t.previous.Files {
		if _, ok := keep[old]; ok {
			continue
		}
		p := old.Under(t.root)
		if err := os.Remove(p); err == nil || os.IsNotExist(err) {
			fs.PruneEmptyDirs(filepath.Dir(p), t.root)
		}
	}

	if t.onCommit != nil {
		t.onCommit()
	}
	return nil
}

// Rollback deletes the staged temporaries. The installation root is
// untouched.
func (t *InstallTask) Rollback() {
	for _, f := range t.staged {
		os.Remove(f.temp)
	}
	t.staged = nil
	t.failed = true
}

// RemoveTask deletes every file a registry entry owns. Files already
// gone from disk are not an error, so removal is idempotent.
type RemoveTask struct {
	entry    registry.Entry
	root     string
	onCommit func()
}

// NewRemoveTask stages the removal of entry's files under root.
func NewRemoveTask(entry registry.Entry, root string) *RemoveTask {
	return &RemoveTask{entry: entry, root: root}
}

// Entry returns the registry entry being removed.
func (t *RemoveTask) Entry() registry.Entry { return t.entry }

// OnCommit registers a callback fired once after a successful Commit.
func (t *RemoveTask) OnCommit(fn func()) { t.onCommit = fn }

// Commit removes the entry's files and prunes directories left empty.
// A file that cannot be deleted does not stop the remaining removals;
// the first such failure is returned.
func (t *RemoveTask) Commit() error {
	var firstErr error
	for _, f := range t.entry.Files {
		p := f.Under(t.root)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "cannot remove %s", f)
			}
			continue
		}
		fs.PruneEmptyDirs(filepath.Dir(p), t.root)
	}
	if firstErr != nil {
		return firstErr
	}

	if t.onCommit != nil {
		t.onCommit()
	}
	return nil
}

// Rollback is a no-op: a RemoveTask stages nothing.
func (t *RemoveTask) Rollback() {}

// taskContext names the package a task operates on, for error reports.
func taskContext(task Task) string {
	switch t := task.(type) {
	case *InstallTask:
		return t.version.Package().FullName()
	case *RemoveTask:
		return t.entry.FullName()
	}
	return ""
}
