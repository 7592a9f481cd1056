// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package fs

import "syscall"

// isCrossDeviceError reports whether err is the cross device link error,
// the one rename failure that the copy fallback can recover from.
func isCrossDeviceError(err error) bool {
	return err == syscall.EXDEV
}
