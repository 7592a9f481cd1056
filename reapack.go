// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reapack holds the client identity and the user-facing
// configuration: the installation root, download tuning and the list
// of configured remotes.
package reapack

import (
	"os"
	"path/filepath"
)

// Version is the client version advertised to remote servers.
const Version = "1.0.0"

// UserAgent identifies this client in HTTP requests.
const UserAgent = "reapack/" + Version

// DefaultRoot returns the default installation root: the REAPER
// resource directory under the user's configuration directory.
func DefaultRoot() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "REAPER"), nil
}
