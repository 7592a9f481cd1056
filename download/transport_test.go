// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportFetch(t *testing.T) {
	var gotUA, gotCacheControl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCacheControl = r.Header.Get("Cache-Control")
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	tr, err := NewTransport(TransportConfig{UserAgent: "reapack-test/1.0"})
	require.NoError(t, err)
	defer tr.Close()

	data, err := tr.Fetch(context.Background(), srv.URL, Options{NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "reapack-test/1.0", gotUA)
	assert.Equal(t, "no-cache", gotCacheControl)
}

func TestTransportFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tr, err := NewTransport(TransportConfig{})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Fetch(context.Background(), srv.URL, Options{})
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.Status)
	assert.Equal(t, srv.URL, terr.URL)
}

func TestTransportFetchAborted(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	tr, err := NewTransport(TransportConfig{})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_, err = tr.Fetch(ctx, srv.URL, Options{})
	assert.ErrorIs(t, err, ErrAborted)
}

func TestTransportInvalidProxy(t *testing.T) {
	_, err := NewTransport(TransportConfig{Proxy: "://bad"})
	assert.Error(t, err)
}

func TestTransportErrorMessage(t *testing.T) {
	withStatus := &TransportError{URL: "u", Status: 502, Msg: "Bad Gateway"}
	assert.Equal(t, "Bad Gateway (status 502)", withStatus.Error())

	plain := &TransportError{URL: "u", Msg: "connection refused"}
	assert.Equal(t, "connection refused", plain.Error())
}
