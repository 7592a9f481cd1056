// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transaction orchestrates package installs, updates and
// removals as one cancellable unit of work: it fetches remote indexes,
// resolves them against the registry, downloads package sources to a
// staging area and finally commits or rolls back the whole batch.
//
// A Transaction is single-use. Operations are requested before Run;
// Run drives the download waves on the calling goroutine and every
// callback fires there, so no user-visible state is touched from a
// download worker.
package transaction

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/joshuaword2alt/reapack"
	"github.com/joshuaword2alt/reapack/download"
	"github.com/joshuaword2alt/reapack/index"
	"github.com/joshuaword2alt/reapack/internal/fs"
	"github.com/joshuaword2alt/reapack/registry"
)

// Step is the phase a transaction is in.
type Step int

const (
	Initial Step = iota
	Synchronizing
	Resolving
	Installing
	Finished
)

func (s Step) String() string {
	switch s {
	case Synchronizing:
		return "synchronizing"
	case Resolving:
		return "resolving"
	case Installing:
		return "installing"
	case Finished:
		return "finished"
	default:
		return "initial"
	}
}

// ConflictError reports that two packages provide the same file. File
// ownership is never compromised: a single conflict refuses the whole
// install batch rather than letting either package overwrite the other.
type ConflictError struct {
	Path   index.Path
	First  string
	Second string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is provided by both %s and %s", e.Path, e.First, e.Second)
}

// HostRegistrar receives install and removal notifications after files
// change on disk, letting the host application refresh script lists or
// extension registrations. A returned error is recorded as non-fatal:
// registration can be retried later and never rolls back an otherwise
// successful install.
type HostRegistrar interface {
	Register(entry registry.Entry) error
	Unregister(entry registry.Entry) error
}

// Config assembles a Transaction's collaborators.
type Config struct {
	// Root is the absolute installation root all target paths resolve
	// against.
	Root string

	// Fetcher performs the network transfers, typically a shared
	// *download.Transport.
	Fetcher download.Fetcher

	// Registry to resolve against. When nil the transaction opens the
	// registry under Root and closes it on destroy.
	Registry *registry.Registry

	// Store caches downloaded indexes. When nil one is created under
	// Root.
	Store *index.Store

	// Concurrency bounds parallel downloads; zero means the queue
	// default.
	Concurrency int

	Logger *log.Logger
	Host   HostRegistrar

	// OnPush fires when a download is queued, on the coordinating
	// goroutine; intended for progress reporting.
	OnPush func(*download.Download)

	// OnFinish receives the receipt after commit or rollback.
	OnFinish func(*Receipt)

	// OnDestroy fires once after the transaction released its
	// resources.
	OnDestroy func()
}

type installRequest struct {
	ver    *index.Version
	pinned bool
}

// Transaction is one batch of package operations.
type Transaction struct {
	id      uuid.UUID
	cfg     Config
	logger  *log.Logger
	store   *index.Store
	reg     *registry.Registry
	ownsReg bool
	queue   *download.Queue
	staging string

	step      Step
	cancelled atomic.Bool
	finished  bool
	receipt   *Receipt

	handlers map[*download.Download]func(*download.Download)
	requests []installRequest
	removals []registry.Entry
	obsolete []registry.Entry
	pins     []registry.Entry
	tasks    []Task
	owners   *pathTrie
}

// New creates a transaction rooted at cfg.Root. It acquires the
// registry lock unless a registry is supplied.
func New(cfg Config) (*Transaction, error) {
	if cfg.Root == "" {
		return nil, errors.New("no installation root configured")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	dataDir := filepath.Join(cfg.Root, "ReaPack")
	if err := fs.EnsureDir(dataDir); err != nil {
		return nil, err
	}

	store := cfg.Store
	if store == nil {
		var err error
		store, err = index.NewStore(filepath.Join(dataDir, "Indexes"))
		if err != nil {
			return nil, err
		}
	}

	reg := cfg.Registry
	ownsReg := false
	if reg == nil {
		var err error
		reg, err = registry.Open(dataDir, logger)
		if err != nil {
			return nil, err
		}
		ownsReg = true
	}

	// Staging under the root keeps commits on one filesystem, so they
	// are plain renames.
	staging, err := os.MkdirTemp(dataDir, "staging")
	if err != nil {
		if ownsReg {
			reg.Close()
		}
		return nil, errors.Wrap(err, "cannot create staging directory")
	}

	queue := download.NewQueue(cfg.Fetcher, cfg.Concurrency, logger)
	if cfg.OnPush != nil {
		queue.OnPush(cfg.OnPush)
	}

	return &Transaction{
		id:       uuid.New(),
		cfg:      cfg,
		logger:   logger,
		store:    store,
		reg:      reg,
		ownsReg:  ownsReg,
		queue:    queue,
		staging:  staging,
		receipt:  NewReceipt(),
		handlers: make(map[*download.Download]func(*download.Download)),
		owners:   newPathTrie(),
	}, nil
}

// ID identifies the transaction in logs.
func (t *Transaction) ID() uuid.UUID { return t.id }

// Step returns the current phase.
func (t *Transaction) Step() Step { return t.step }

// Receipt returns the accumulating receipt.
func (t *Transaction) Receipt() *Receipt { return t.receipt }

// Cancelled reports whether Cancel was called.
func (t *Transaction) Cancelled() bool { return t.cancelled.Load() }

// Obsolete returns the installed entries whose package vanished from
// its remote's index during synchronization. They are reported with
// status Obsolete, never removed automatically.
func (t *Transaction) Obsolete() []registry.Entry { return t.obsolete }

// Cancel requests that the transaction stop and roll back. It aborts
// every queued and in-flight download; the rollback itself happens on
// the coordinating goroutine when the current wave drains. Cancel is
// idempotent and safe from any goroutine.
func (t *Transaction) Cancel() {
	if t.cancelled.Swap(true) {
		return
	}
	t.queue.Abort()
	t.logger.Debug("transaction cancelled", "id", t.id)
}

// Synchronize fetches the remote's index and schedules an update of
// every installed, unpinned package that has a newer version. With
// installNew, packages not yet installed are installed at their latest
// version too.
func (t *Transaction) Synchronize(remote reapack.Remote, installNew bool) {
	d := download.NewDownload(remote.Name, remote.URL, download.Options{NoCache: true})
	t.handlers[d] = func(d *download.Download) { t.saveIndex(d, remote.Name, installNew) }
	t.queue.Push(d)
}

// Install schedules ver for installation, replacing any installed
// version of the same package. Pinned installs are held at this version
// by later synchronizations.
func (t *Transaction) Install(ver *index.Version, pinned bool) {
	t.requests = append(t.requests, installRequest{ver: ver, pinned: pinned})
}

// Uninstall schedules the removal of an installed entry.
func (t *Transaction) Uninstall(entry registry.Entry) {
	t.removals = append(t.removals, entry)
}

// UninstallRemote schedules the removal of every entry installed from
// the named remote. A remote with nothing installed cancels the
// transaction, which then finishes with zero removals and zero errors.
func (t *Transaction) UninstallRemote(name string) {
	entries := t.reg.QueryAll(name)
	if len(entries) == 0 {
		t.Cancel()
		return
	}
	for _, entry := range entries {
		t.Uninstall(entry)
	}
}

// Run executes the transaction to completion: index downloads, then
// resolution, then source downloads, then commit or rollback. It always
// finishes and destroys the transaction, and returns ctx's error when
// the context was cancelled.
func (t *Transaction) Run(ctx context.Context) error {
	defer t.destroy()

	var runErr error

	t.step = Synchronizing
	if err := t.queue.Wait(ctx, t.dispatch); err != nil {
		runErr = err
		t.Cancel()
	}

	t.step = Resolving
	if !t.Cancelled() {
		t.resolve()
	}

	t.step = Installing
	if err := t.queue.Wait(ctx, t.dispatch); err != nil {
		runErr = err
		t.Cancel()
	}

	t.finish()
	return runErr
}

// dispatch routes a completed download to its registered handler.
func (t *Transaction) dispatch(d *download.Download) {
	handler, ok := t.handlers[d]
	if !ok {
		return
	}
	delete(t.handlers, d)
	handler(d)
}

// saveIndex handles a completed index download: persist the document,
// parse it and derive the install requests for the remote. A remote
// whose index cannot be fetched, stored or parsed is skipped with an
// error on the receipt.
func (t *Transaction) saveIndex(d *download.Download, remote string, installNew bool) {
	switch d.State() {
	case download.Aborted:
		return
	case download.Failure:
		t.receipt.addError(d.Err(), remote)
		return
	}

	if err := t.store.Write(remote, d.Contents()); err != nil {
		t.receipt.addError(err, remote)
		return
	}

	ri, err := index.Parse(remote, d.Contents())
	if err != nil {
		t.receipt.addError(err, remote)
		return
	}
	t.logger.Debug("index loaded", "remote", remote, "packages", len(ri.Packages()))

	if installNew {
		for _, pkg := range ri.Packages() {
			last := pkg.LastVersion()
			if last == nil {
				continue
			}
			if entry := t.reg.Query(pkg); entry.Installed() && entry.Pinned {
				continue
			}
			t.Install(last, false)
		}
		return
	}

	for _, entry := range t.reg.QueryAll(remote) {
		pkg := ri.Find(entry.Category, entry.Package)
		if pkg == nil {
			entry.Status = registry.Obsolete
			t.obsolete = append(t.obsolete, entry)
			t.logger.Debug("installed package is gone from its index", "package", entry.FullName())
			continue
		}
		if entry.Pinned {
			continue
		}
		last := pkg.LastVersion()
		if last != nil && entry.Version.Compare(last.Name()) < 0 {
			t.Install(last, false)
		}
	}
}

// resolve turns the collected requests into tasks and queues the
// source downloads. Every candidate's file set is claimed before any
// task is created so that all conflicts in the batch are reported; a
// single conflict refuses the whole batch and nothing is written.
func (t *Transaction) resolve() {
	valid := make([]installRequest, 0, len(t.requests))
	for _, req := range t.requests {
		if err := t.registerFiles(req.ver); err != nil {
			t.receipt.markConflict()
			t.receipt.addError(err, req.ver.FullName())
			continue
		}
		valid = append(valid, req)
	}
	if t.receipt.HasConflicts() {
		return
	}

	// Removals commit before installs: an install may take over a path
	// owned by a package removed in the same batch, and the new file and
	// its ownership row must survive the removal.
	for _, entry := range t.removals {
		task := NewRemoveTask(entry, t.cfg.Root)
		task.OnCommit(func() {
			t.reg.Forget(entry)
			t.receipt.addRemoval(entry)
			if t.cfg.Host != nil {
				t.receipt.addError(t.cfg.Host.Unregister(entry), entry.FullName())
			}
		})
		t.tasks = append(t.tasks, task)
	}

	for _, req := range valid {
		t.stageInstall(req)
	}
}

func (t *Transaction) stageInstall(req installRequest) {
	ver := req.ver
	pkg := ver.Package()
	entry := t.reg.Query(pkg)

	// Already on disk at this exact version: nothing to download and
	// nothing to report. The pin is held back until the commit path so
	// a cancelled transaction stages no registry mutation.
	if entry.Installed() && entry.Version.Compare(ver.Name()) == 0 && t.allFilesExist(ver) {
		if req.pinned {
			t.pins = append(t.pins, entry)
		}
		return
	}

	task := NewInstallTask(ver, entry, t.cfg.Root, t.staging)
	task.OnCommit(func() {
		t.reg.Push(ver)
		if req.pinned {
			t.reg.SetPinned(registry.Entry{
				Remote:   pkg.Category().Index().Name(),
				Category: pkg.Category().Name(),
				Package:  pkg.Name(),
			}, true)
		}
		t.receipt.addInstall(InstallTicket{Version: ver, Previous: entry})
		if t.cfg.Host != nil {
			err := t.cfg.Host.Register(registry.Entry{
				Remote:   pkg.Category().Index().Name(),
				Category: pkg.Category().Name(),
				Package:  pkg.Name(),
				Type:     pkg.Type(),
				Version:  ver.Name(),
				Files:    ver.Files(),
			})
			t.receipt.addError(err, pkg.FullName())
		}
	})
	t.tasks = append(t.tasks, task)

	for _, src := range ver.Sources() {
		d := download.NewDownload(src.File(), src.URL(), download.Options{})
		t.handlers[d] = func(d *download.Download) { t.saveSource(d, task, src) }
		t.queue.Push(d)
	}
}

// registerFiles claims every target path of ver. A path already
// claimed by another package in this batch, or owned at the committed
// state by a package not scheduled for removal, is a conflict.
func (t *Transaction) registerFiles(ver *index.Version) error {
	key := ver.Package().FullName()

	for _, f := range ver.Files() {
		if owner, ok := t.owners.owner(f); ok && owner != key {
			return &ConflictError{Path: f, First: owner, Second: key}
		}
		if owner, ok := t.reg.Owner(f); ok && owner != key && !t.removing(owner) {
			return &ConflictError{Path: f, First: owner, Second: key}
		}
	}

	for _, f := range ver.Files() {
		t.owners.claim(f, key)
	}
	return nil
}

// removing reports whether the entry stored under key is scheduled for
// removal by this transaction.
func (t *Transaction) removing(key string) bool {
	for _, entry := range t.removals {
		if entry.Key() == key {
			return true
		}
	}
	return false
}

func (t *Transaction) allFilesExist(ver *index.Version) bool {
	for _, f := range ver.Files() {
		if !fs.FileExists(f.Under(t.cfg.Root)) {
			return false
		}
	}
	return true
}

// saveSource handles a completed source download by staging its
// contents on the owning task. Any failure poisons the whole task so a
// partially downloaded version is never committed.
func (t *Transaction) saveSource(d *download.Download, task *InstallTask, src *index.Source) {
	switch d.State() {
	case download.Success:
		if task.Failed() {
			return
		}
		if err := task.SaveDownload(src, d.Contents()); err != nil {
			task.Fail()
			t.receipt.addError(err, task.Version().FullName())
		}
	case download.Aborted:
		task.Fail()
	default:
		task.Fail()
		t.receipt.addError(d.Err(), src.URL())
	}
}

// finish commits or rolls back every task exactly once, then persists
// the registry in a single transaction. A cancelled or conflicted
// transaction commits nothing.
func (t *Transaction) finish() {
	if t.finished {
		return
	}
	t.finished = true

	if t.Cancelled() || t.receipt.HasConflicts() {
		for _, task := range t.tasks {
			task.Rollback()
		}
	} else {
		for _, task := range t.tasks {
			if it, ok := task.(*InstallTask); ok && it.Failed() {
				it.Rollback()
				continue
			}
			if err := task.Commit(); err != nil {
				t.receipt.addError(err, taskContext(task))
				task.Rollback()
			}
		}
		for _, entry := range t.pins {
			t.reg.SetPinned(entry, true)
		}
		if err := t.reg.Commit(); err != nil {
			t.receipt.addError(err, "registry")
		}
	}

	t.step = Finished
	t.logger.Debug("transaction finished", "id", t.id,
		"installs", len(t.receipt.Installs()), "removals", len(t.receipt.Removals()),
		"errors", len(t.receipt.Errors()))

	if t.cfg.OnFinish != nil {
		t.cfg.OnFinish(t.receipt)
	}
}

func (t *Transaction) destroy() {
	t.finish()

	t.queue.Close()
	os.RemoveAll(t.staging)
	if t.ownsReg {
		t.reg.Close()
	}
	if t.cfg.OnDestroy != nil {
		t.cfg.OnDestroy()
	}
}
