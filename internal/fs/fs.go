// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs holds the small set of filesystem primitives the install
// and registry machinery relies on: rename with a cross-device copy
// fallback, atomic whole-file writes, and directory helpers.
package fs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// RenameWithFallback attempts to rename a file, but falls back to copying
// in the event of a cross-device link error. If the fallback copy
// succeeds, src is still removed, emulating normal rename behavior.
func RenameWithFallback(src, dst string) error {
	_, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}

	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}

	return renameFallback(err, src, dst)
}

// renameFallback decides whether a failed rename can be retried as a
// copy. Rename may fail if src and dst are on different devices; only
// that case is worth the copy, everything else is surfaced as-is.
func renameFallback(err error, src, dst string) error {
	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	} else if !isCrossDeviceError(terr.Err) {
		return errors.Wrapf(terr, "link error: cannot rename %s to %s", src, dst)
	}

	if cerr := CopyFile(src, dst); cerr != nil {
		return errors.Wrapf(cerr, "rename fallback failed: cannot rename %s to %s", src, dst)
	}

	return errors.Wrapf(os.Remove(src), "cannot delete %s", src)
}

// CopyFile copies the contents of the file named src to the file named
// by dst, creating it if necessary and replacing any previous contents.
// The file mode is copied from the source and the copied data is synced
// to stable storage.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.Close(); e != nil && err == nil {
			err = e
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}

	if err = out.Sync(); err != nil {
		return err
	}

	si, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, si.Mode())
}

// WriteFileAtomic writes data to a temporary file in the same directory
// as path, then renames it into place. Readers of path never observe a
// partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "cannot create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "cannot write %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "cannot sync %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "cannot close %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return errors.Wrapf(err, "cannot chmod %s", tmp.Name())
	}

	return RenameWithFallback(tmp.Name(), path)
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return errors.Wrapf(os.MkdirAll(dir, 0o755), "cannot create directory %s", dir)
}

// IsDir determines whether the path given is a directory.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// PruneEmptyDirs removes dir and each of its parents, stopping at the
// first non-empty directory or when stop is reached. Removal failures
// end the walk silently; pruning is best-effort cleanup.
func PruneEmptyDirs(dir, stop string) {
	stop = filepath.Clean(stop)

	for {
		dir = filepath.Clean(dir)
		if dir == stop || dir == string(filepath.Separator) || dir == "." {
			return
		}

		empty, err := isEmptyDir(dir)
		if err != nil || !empty {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}

		dir = filepath.Dir(dir)
	}
}

func isEmptyDir(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	switch err {
	case io.EOF:
		return true, nil
	case nil:
		return false, nil
	default:
		return false, err
	}
}
