// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package download

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/dnscache"
	"golang.org/x/time/rate"
)

// TransportConfig configures the shared Transport.
type TransportConfig struct {
	UserAgent  string
	Proxy      string // empty means honor the process environment
	VerifyPeer bool
	Timeout    time.Duration // connect and header timeout, default 15s
	// RequestsPerSecond throttles outgoing requests across all
	// workers; zero disables throttling.
	RequestsPerSecond float64
}

// DefaultTimeout bounds connection establishment and time-to-first-byte
// of a single fetch attempt.
const DefaultTimeout = 15 * time.Second

// Transport is the process-wide transport context shared by all
// download workers: one HTTP client with a cached DNS resolver, TLS
// session reuse through connection pooling, and an optional rate
// limiter. It is created once and passed to every Queue; Close releases
// its background resources.
type Transport struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	stop      chan struct{}
}

// NewTransport builds a Transport from cfg.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	resolver := &dnscache.Resolver{}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	proxy := http.ProxyFromEnvironment
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			close(stop)
			return nil, errors.Wrapf(err, "invalid proxy url %q", cfg.Proxy)
		}
		proxy = http.ProxyURL(u)
	}

	tr := &http.Transport{
		Proxy: proxy,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var dialErr error
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				dialErr = err
			}
			if dialErr == nil {
				dialErr = errors.Errorf("no addresses resolved for %s", host)
			}
			return nil, dialErr
		},
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !cfg.VerifyPeer},
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}

	client := &http.Client{
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Transport{
		client:    client,
		limiter:   limiter,
		userAgent: cfg.UserAgent,
		stop:      stop,
	}, nil
}

// Close stops the DNS refresh loop and drops idle connections.
func (t *Transport) Close() {
	close(t.stop)
	t.client.CloseIdleConnections()
}

// Fetch implements Fetcher: one URL to bytes attempt with no retries.
// Non-success statuses become a *TransportError; context cancellation
// surfaces as ErrAborted.
func (t *Transport) Fetch(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, abortedOr(ctx, err, rawURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Msg: err.Error()}
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if opts.NoCache {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, abortedOr(ctx, err, rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			URL:    rawURL,
			Status: resp.StatusCode,
			Msg:    http.StatusText(resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, abortedOr(ctx, err, rawURL)
	}
	return data, nil
}

// abortedOr maps context cancellation to ErrAborted and everything else
// to a TransportError carrying the transport diagnostic.
func abortedOr(ctx context.Context, err error, url string) error {
	if ctx.Err() != nil {
		return ErrAborted
	}
	return &TransportError{URL: url, Msg: err.Error()}
}
