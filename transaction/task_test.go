// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuaword2alt/reapack/index"
	"github.com/joshuaword2alt/reapack/registry"
)

func testVersion(t *testing.T) *index.Version {
	t.Helper()

	ri, err := index.New("Remote")
	require.NoError(t, err)
	cat, err := index.NewCategory("Category", ri)
	require.NoError(t, err)
	pkg, err := index.NewPackage(index.ScriptType, "pkg.lua", cat)
	require.NoError(t, err)
	ver, err := index.NewVersion("1.0", pkg)
	require.NoError(t, err)
	src, err := index.NewSource(index.GenericPlatform, "", "https://example.com/pkg.lua", ver)
	require.NoError(t, err)
	require.NoError(t, ver.AddSource(src))
	return ver
}

func TestInstallTaskCommit(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()
	ver := testVersion(t)

	task := NewInstallTask(ver, registry.Entry{}, root, staging)

	var committed bool
	task.OnCommit(func() { committed = true })

	require.NoError(t, task.SaveDownload(ver.Sources()[0], []byte("payload")))
	require.NoError(t, task.Commit())
	assert.True(t, committed)

	data, err := os.ReadFile(filepath.Join(root, "Scripts", "Remote", "Category", "pkg.lua"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged files are consumed by the commit")
}

func TestInstallTaskCommitRemovesObsoleteFiles(t *testing.T) {
	root := t.TempDir()
	ver := testVersion(t)

	obsolete := index.Path("Scripts/Remote/Category/old.lua")
	require.NoError(t, os.MkdirAll(filepath.Dir(obsolete.Under(root)), 0o755))
	require.NoError(t, os.WriteFile(obsolete.Under(root), []byte("old"), 0o644))

	previous := registry.Entry{
		Remote:   "Remote",
		Category: "Category",
		Package:  "pkg.lua",
		Files:    []index.Path{obsolete, "Scripts/Remote/Category/pkg.lua"},
	}

	task := NewInstallTask(ver, previous, root, t.TempDir())
	require.NoError(t, task.SaveDownload(ver.Sources()[0], []byte("new")))
	require.NoError(t, task.Commit())

	assert.NoFileExists(t, obsolete.Under(root))
	assert.FileExists(t, filepath.Join(root, "Scripts", "Remote", "Category", "pkg.lua"),
		"files carried over to the new version stay put")
}

func TestInstallTaskRollback(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()
	ver := testVersion(t)

	task := NewInstallTask(ver, registry.Entry{}, root, staging)
	require.NoError(t, task.SaveDownload(ver.Sources()[0], []byte("payload")))

	task.Rollback()
	assert.True(t, task.Failed())

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "rollback deletes the staged temporaries")
	assert.NoDirExists(t, filepath.Join(root, "Scripts"))
}

func TestRemoveTaskToleratesMissingFiles(t *testing.T) {
	root := t.TempDir()

	present := index.Path("Scripts/Remote/Category/present.lua")
	require.NoError(t, os.MkdirAll(filepath.Dir(present.Under(root)), 0o755))
	require.NoError(t, os.WriteFile(present.Under(root), []byte("x"), 0o644))

	entry := registry.Entry{
		Remote:   "Remote",
		Category: "Category",
		Package:  "pkg.lua",
		Files:    []index.Path{"Scripts/Remote/Category/gone.lua", present},
	}

	task := NewRemoveTask(entry, root)

	var committed bool
	task.OnCommit(func() { committed = true })

	require.NoError(t, task.Commit(), "a file already gone from disk is not an error")
	assert.True(t, committed)
	assert.NoFileExists(t, present.Under(root))
	assert.NoDirExists(t, filepath.Join(root, "Scripts"), "emptied directories are pruned")
}
