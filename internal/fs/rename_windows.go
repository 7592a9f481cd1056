// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package fs

import "syscall"

// isCrossDeviceError reports whether err indicates a move across
// volumes. Windows surfaces ERROR_NOT_SAME_DEVICE where unix reports
// EXDEV.
func isCrossDeviceError(err error) bool {
	const errorNotSameDevice = syscall.Errno(0x11)
	return err == errorNotSameDevice
}
