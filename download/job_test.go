// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package download

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestDownloadSuccess(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, url string, opts Options) ([]byte, error) {
		return []byte("payload"), nil
	})

	d := NewDownload("job", "https://example.com/f", Options{})
	assert.Equal(t, Idle, d.State())

	d.run(context.Background(), fetcher)

	assert.Equal(t, Success, d.State())
	assert.True(t, d.State().Terminal())
	assert.Equal(t, []byte("payload"), d.Contents())
	assert.NoError(t, d.Err())
}

func TestDownloadFailure(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, url string, opts Options) ([]byte, error) {
		return nil, errors.New("boom")
	})

	d := NewDownload("job", "https://example.com/f", Options{})
	d.run(context.Background(), fetcher)

	assert.Equal(t, Failure, d.State())
	assert.EqualError(t, d.Err(), "boom")
}

func TestDownloadAbortBeforeRun(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, url string, opts Options) ([]byte, error) {
		t.Fatal("an aborted job must not fetch")
		return nil, nil
	})

	d := NewDownload("job", "https://example.com/f", Options{})
	d.Abort()
	d.Abort() // idempotent

	d.run(context.Background(), fetcher)

	assert.Equal(t, Aborted, d.State())
	assert.ErrorIs(t, d.Err(), ErrAborted)
}

func TestDownloadAbortInFlight(t *testing.T) {
	started := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context, url string, opts Options) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ErrAborted
	})

	d := NewDownload("job", "https://example.com/f", Options{})
	done := make(chan struct{})
	go func() {
		d.run(context.Background(), fetcher)
		close(done)
	}()

	<-started
	d.Abort()
	<-done

	assert.Equal(t, Aborted, d.State())
	assert.ErrorIs(t, d.Err(), ErrAborted)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "failure", Failure.String())
	assert.Equal(t, "aborted", Aborted.String())
}
