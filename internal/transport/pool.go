// Package transport implements the Byte Transport (spec.md §4.1): a
// fixed-size connection pool fronting HTTP and local-filesystem sources,
// with range-resume, retry, and fsync-on-close durability. Grounded on
// the pack's mirrorctl/aptutil download goroutines (connection-gating
// semaphore, Range-header resume, retry) and the teacher's cmn/cos error
// taxonomy. Retries are immediate, with no backoff delay between them.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/packetary-go/pkgmirror/cmn/debug"
	"github.com/packetary-go/pkgmirror/cmn/nlog"
)

// ReadableByteStream is what open_stream returns: the caller reads until
// EOF, then Closes.
type ReadableByteStream = interface {
	Read(p []byte) (int, error)
	Close() error
}

// Pool is a fixed-size connection pool (spec.md §5 "connection pool of
// size connection_count gates outbound bytes"). A task that needs
// network bytes acquires a slot via acquire/release; acquisition blocks
// when the pool is exhausted.
type Pool struct {
	client  *http.Client
	slots   chan struct{}
	retries int
}

// Opts configures a Pool's retry budget and optional proxies (spec.md
// §4.1 "one optional HTTP proxy URL and one optional HTTPS proxy URL
// apply to every connection created by the pool").
type Opts struct {
	Retries    int
	HTTPProxy  string
	HTTPSProxy string
	Timeout    time.Duration
}

func New(connectionCount int, opts Opts) *Pool {
	debug.Assert(connectionCount >= 1, "connection_count must be >= 1")

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = connectionCount * 2
	tr.MaxIdleConnsPerHost = connectionCount
	tr.Proxy = proxyFunc(opts.HTTPProxy, opts.HTTPSProxy)

	retries := opts.Retries
	if retries <= 0 {
		retries = 5
	}
	return &Pool{
		client:  &http.Client{Transport: tr, Timeout: opts.Timeout},
		slots:   make(chan struct{}, connectionCount),
		retries: retries,
	}
}

// proxyFunc builds a per-scheme proxy resolver when either override is
// set; nil falls back to http.ProxyFromEnvironment.
func proxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}
	var httpURL, httpsURL *url.URL
	if httpProxy != "" {
		if u, err := url.Parse(httpProxy); err == nil {
			httpURL = u
		} else {
			nlog.Warningf("ignoring invalid http_proxy %q: %v", httpProxy, err)
		}
	}
	if httpsProxy != "" {
		if u, err := url.Parse(httpsProxy); err == nil {
			httpsURL = u
		} else {
			nlog.Warningf("ignoring invalid https_proxy %q: %v", httpsProxy, err)
		}
	}
	return func(req *http.Request) (*url.URL, error) {
		switch req.URL.Scheme {
		case "https":
			if httpsURL != nil {
				return httpsURL, nil
			}
		case "http":
			if httpURL != nil {
				return httpURL, nil
			}
		}
		return http.ProxyFromEnvironment(req)
	}
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() { <-p.slots }
