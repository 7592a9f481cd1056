// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"runtime"

	"github.com/pkg/errors"
)

// Platform restricts a source to one operating system. The zero value
// GenericPlatform matches everywhere.
type Platform int

const (
	GenericPlatform Platform = iota
	WindowsPlatform
	DarwinPlatform
	LinuxPlatform
	UnknownPlatform
)

// PlatformFor maps the index attribute value to a Platform. Unknown
// strings yield UnknownPlatform, which matches nothing.
func PlatformFor(s string) Platform {
	switch s {
	case "", "all":
		return GenericPlatform
	case "windows", "win32", "win64":
		return WindowsPlatform
	case "darwin", "darwin32", "darwin64":
		return DarwinPlatform
	case "linux", "linux32", "linux64":
		return LinuxPlatform
	default:
		return UnknownPlatform
	}
}

func (p Platform) String() string {
	switch p {
	case GenericPlatform:
		return "all"
	case WindowsPlatform:
		return "windows"
	case DarwinPlatform:
		return "darwin"
	case LinuxPlatform:
		return "linux"
	default:
		return "unknown"
	}
}

// Runs reports whether a source declared for p should be installed on
// host.
func (p Platform) Runs(host Platform) bool {
	return p == GenericPlatform || p == host
}

// CurrentPlatform returns the Platform of the running host.
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return WindowsPlatform
	case "darwin":
		return DarwinPlatform
	default:
		return LinuxPlatform
	}
}

// Source is one downloadable file of a Version: an origin URL plus the
// file it resolves to under the package's target location.
type Source struct {
	version  *Version
	platform Platform
	file     string
	url      string
}

// NewSource creates a Source belonging to ver. The URL is mandatory;
// file may be empty, in which case the package name is used.
func NewSource(platform Platform, file, url string, ver *Version) (*Source, error) {
	if url == "" {
		return nil, errors.New("empty source url")
	}
	return &Source{version: ver, platform: platform, file: file, url: url}, nil
}

// Platform returns the platform restriction of the source.
func (s *Source) Platform() Platform { return s.platform }

// URL returns the download origin.
func (s *Source) URL() string { return s.url }

// File returns the target file name, defaulting to the package name.
func (s *Source) File() string {
	if s.file != "" {
		return s.file
	}
	if s.version != nil && s.version.pkg != nil {
		return s.version.pkg.Name()
	}
	return ""
}

// TargetPath resolves the file this source installs, relative to the
// installation root.
func (s *Source) TargetPath() (Path, error) {
	if s.version == nil || s.version.pkg == nil {
		return "", errors.New("source is not attached to a package")
	}

	loc, err := s.version.pkg.TargetLocation()
	if err != nil {
		return "", err
	}

	file, err := ParsePath(s.File())
	if err != nil {
		return "", errors.Wrap(err, "invalid source file name")
	}

	return NewPath(string(loc), string(file)), nil
}
