// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package download

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds simultaneous network connections when the
// caller does not configure a pool size.
const DefaultConcurrency = 3

// Queue runs Download jobs on a fixed-size worker pool. Jobs may be
// pushed in waves; Wait drains one wave, replaying every completion on
// the calling goroutine so that no observer ever runs on a worker.
type Queue struct {
	fetcher Fetcher
	workers int
	logger  *log.Logger
	onPush  func(*Download)

	mu       sync.Mutex
	pending  []*Download
	inflight map[*Download]struct{}
	finished []*Download
	// outstanding counts queued plus running jobs not yet consumed by
	// Wait; the queue is idle when it reaches zero.
	outstanding int
	started     bool

	wake   chan struct{}
	notify chan struct{}
	stop   chan struct{}
	eg     *errgroup.Group
}

// NewQueue creates a queue executing jobs through fetcher. A
// non-positive workers falls back to DefaultConcurrency.
func NewQueue(fetcher Fetcher, workers int, logger *log.Logger) *Queue {
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	return &Queue{
		fetcher:  fetcher,
		workers:  workers,
		logger:   logger,
		inflight: make(map[*Download]struct{}),
		wake:     make(chan struct{}, 1),
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// OnPush registers an observer fired synchronously from Push, on the
// pushing goroutine.
func (q *Queue) OnPush(fn func(*Download)) { q.onPush = fn }

// Push enqueues a job and lazily starts the worker pool.
func (q *Queue) Push(d *Download) {
	q.mu.Lock()
	q.pending = append(q.pending, d)
	q.outstanding++
	if !q.started {
		q.started = true
		q.eg = new(errgroup.Group)
		for i := 0; i < q.workers; i++ {
			q.eg.Go(q.work)
		}
	}
	q.mu.Unlock()

	q.signal(q.wake)
	if q.onPush != nil {
		q.onPush(d)
	}
	if q.logger != nil {
		q.logger.Debug("queued download", "name", d.Name(), "url", d.URL())
	}
}

// Idle reports whether the queue has no queued or running jobs and no
// unconsumed completions.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding == 0
}

// Abort requests cancellation of every queued and in-flight job. Each
// job still reaches a terminal state and is delivered to Wait, so the
// drain signal fires exactly once even for an aborted wave.
func (q *Queue) Abort() {
	q.mu.Lock()
	jobs := make([]*Download, 0, len(q.pending)+len(q.inflight))
	jobs = append(jobs, q.pending...)
	for d := range q.inflight {
		jobs = append(jobs, d)
	}
	q.mu.Unlock()

	for _, d := range jobs {
		d.Abort()
	}
}

// Wait blocks until the current wave drains, invoking onDone on the
// calling goroutine for every job that reaches a terminal state. When
// ctx is cancelled the queue is aborted and Wait keeps draining until
// every outstanding job has terminated, then returns ctx.Err().
func (q *Queue) Wait(ctx context.Context, onDone func(*Download)) error {
	var ctxErr error

	for {
		q.mu.Lock()
		batch := q.finished
		q.finished = nil
		q.mu.Unlock()

		for _, d := range batch {
			q.outstandingDone()
			if onDone != nil {
				onDone(d)
			}
		}

		q.mu.Lock()
		idle := q.outstanding == 0 && len(q.finished) == 0
		q.mu.Unlock()
		if idle {
			return ctxErr
		}

		if ctxErr == nil {
			select {
			case <-ctx.Done():
				ctxErr = ctx.Err()
				q.Abort()
				continue
			case <-q.notify:
			}
		} else {
			<-q.notify
		}
	}
}

// Close stops the worker pool. Pending jobs are aborted and drained.
func (q *Queue) Close() {
	q.Abort()

	q.mu.Lock()
	started := q.started
	q.mu.Unlock()

	close(q.stop)
	if started {
		q.eg.Wait()
	}
}

func (q *Queue) outstandingDone() {
	q.mu.Lock()
	q.outstanding--
	q.mu.Unlock()
}

func (q *Queue) work() error {
	for {
		d := q.pop()
		if d == nil {
			select {
			case <-q.stop:
				return nil
			case <-q.wake:
				continue
			}
		}

		d.run(context.Background(), q.fetcher)

		q.mu.Lock()
		delete(q.inflight, d)
		q.finished = append(q.finished, d)
		q.mu.Unlock()

		q.signal(q.notify)
		if q.logger != nil {
			q.logger.Debug("download finished", "name", d.Name(), "state", d.State())
		}
	}
}

func (q *Queue) pop() *Download {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	d := q.pending[0]
	q.pending = q.pending[1:]
	q.inflight[d] = struct{}{}
	return d
}

// signal performs a non-blocking send on a capacity-one channel.
func (q *Queue) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
