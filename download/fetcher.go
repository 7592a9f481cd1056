// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package download schedules network fetches on a bounded worker pool.
// A Transaction pushes Download jobs onto a Queue and consumes their
// completions on its own goroutine; cancellation is cooperative and
// always drives a job to a terminal state.
package download

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrAborted is the terminal error of a cancelled fetch.
var ErrAborted = errors.New("aborted by user")

// TransportError describes a failed fetch: either a transport-level
// problem or a non-success HTTP status.
type TransportError struct {
	URL    string
	Status int
	Msg    string
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Msg, e.Status)
	}
	return e.Msg
}

// Options carries the per-request knobs a job may set. Transport-wide
// settings (proxy, peer verification, timeouts) belong to the Transport
// configuration instead.
type Options struct {
	// NoCache asks intermediaries to bypass their caches; used for
	// index downloads so a stale index never masks new releases.
	NoCache bool
}

// Fetcher performs one URL to bytes operation. Cancelling the context
// is the cooperative abort signal: implementations must stop
// transferring and return an error wrapping ErrAborted.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string, opts Options) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string, opts Options) ([]byte, error) {
	return f(ctx, url, opts)
}
