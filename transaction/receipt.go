// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"fmt"

	"github.com/joshuaword2alt/reapack/index"
	"github.com/joshuaword2alt/reapack/registry"
)

// Error is one failed operation recorded on the receipt. Context names
// the package, remote or file the failure belongs to.
type Error struct {
	Message string
	Context string
}

func (e Error) String() string {
	if e.Context == "" {
		return e.Message
	}
	return e.Context + ": " + e.Message
}

// InstallTicket describes one committed install, pairing the version
// now on disk with the registry entry it replaced.
type InstallTicket struct {
	Version  *index.Version
	Previous registry.Entry
}

// IsUpdate reports whether the ticket replaced an installed version.
func (t InstallTicket) IsUpdate() bool { return t.Previous.Installed() }

// Receipt accumulates the outcome of a transaction: what was installed,
// updated and removed, plus every error along the way. It is populated
// on the coordinating goroutine only.
type Receipt struct {
	installs  []InstallTicket
	removals  []registry.Entry
	errors    []Error
	conflicts bool
}

// NewReceipt returns an empty receipt.
func NewReceipt() *Receipt { return &Receipt{} }

// Installs returns every committed install and update ticket.
func (r *Receipt) Installs() []InstallTicket { return r.installs }

// Updates returns only the tickets that replaced an installed version.
func (r *Receipt) Updates() []InstallTicket {
	var out []InstallTicket
	for _, t := range r.installs {
		if t.IsUpdate() {
			out = append(out, t)
		}
	}
	return out
}

// Removals returns the entries removed from disk and registry.
func (r *Receipt) Removals() []registry.Entry { return r.removals }

// Errors returns every recorded error in occurrence order.
func (r *Receipt) Errors() []Error { return r.errors }

// HasConflicts reports whether any install was dropped because two
// packages claimed the same file.
func (r *Receipt) HasConflicts() bool { return r.conflicts }

// Empty reports whether the transaction changed nothing and recorded no
// error.
func (r *Receipt) Empty() bool {
	return len(r.installs) == 0 && len(r.removals) == 0 && len(r.errors) == 0
}

func (r *Receipt) addInstall(t InstallTicket)  { r.installs = append(r.installs, t) }
func (r *Receipt) addRemoval(e registry.Entry) { r.removals = append(r.removals, e) }
func (r *Receipt) markConflict()               { r.conflicts = true }

func (r *Receipt) addError(err error, context string) {
	if err == nil {
		return
	}
	r.errors = append(r.errors, Error{Message: err.Error(), Context: context})
}

// Summary renders one human-readable line per recorded event.
func (r *Receipt) Summary() []string {
	var lines []string
	for _, t := range r.installs {
		if t.IsUpdate() {
			lines = append(lines, fmt.Sprintf("updated %s (from v%s)",
				t.Version.FullName(), t.Previous.Version))
		} else {
			lines = append(lines, "installed "+t.Version.FullName())
		}
	}
	for _, e := range r.removals {
		lines = append(lines, "removed "+e.FullName())
	}
	for _, e := range r.errors {
		lines = append(lines, "error: "+e.String())
	}
	return lines
}
