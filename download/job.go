// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package download

import (
	"context"
	"errors"
	"sync"
)

// State is the lifecycle of a Download:
// Idle -> Running -> {Success, Failure, Aborted}.
type State int

const (
	Idle State = iota
	Running
	Success
	Failure
	Aborted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Aborted:
		return "aborted"
	default:
		return "idle"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool { return s >= Success }

// Download is one fetch job identified by (name, url). The name is
// presentation-level context (remote or package name); the result
// buffer and state are guarded for access from both the worker that
// runs the job and the coordinating goroutine that consumes it.
type Download struct {
	name string
	url  string
	opts Options

	mu      sync.Mutex
	state   State
	aborted bool
	cancel  context.CancelFunc
	data    []byte
	err     error
}

// NewDownload creates an Idle job.
func NewDownload(name, url string, opts Options) *Download {
	return &Download{name: name, url: url, opts: opts}
}

// Name returns the presentation name of the job.
func (d *Download) Name() string { return d.name }

// URL returns the fetch origin.
func (d *Download) URL() string { return d.url }

// State returns the current lifecycle state.
func (d *Download) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Contents returns the fetched bytes of a successful job.
func (d *Download) Contents() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data
}

// Err returns the terminal error of a failed or aborted job.
func (d *Download) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Abort requests cooperative cancellation. A job aborted before a
// worker picks it up finishes as Aborted without performing any I/O;
// an in-flight job has its transfer context cancelled. Abort is
// idempotent and safe after the job finished.
func (d *Download) Abort() {
	d.mu.Lock()
	cancel := d.cancel
	d.aborted = true
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// run executes the fetch on a worker goroutine. It transitions the job
// to exactly one terminal state.
func (d *Download) run(ctx context.Context, fetcher Fetcher) {
	d.mu.Lock()
	if d.aborted {
		d.state = Aborted
		d.err = ErrAborted
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.state = Running
	d.mu.Unlock()

	defer cancel()
	data, err := fetcher.Fetch(ctx, d.url, d.opts)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel = nil

	switch {
	case d.aborted || errors.Is(err, ErrAborted) || ctx.Err() != nil:
		d.state = Aborted
		d.err = ErrAborted
	case err != nil:
		d.state = Failure
		d.err = err
	default:
		d.state = Success
		d.data = data
	}
}
