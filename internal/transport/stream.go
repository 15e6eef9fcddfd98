// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/packetary-go/pkgmirror/cmn/cos"
)

// OpenStream implements spec.md §4.1 `open_stream(url, offset) →
// ReadableByteStream`. file:// URLs and bare absolute paths degenerate
// to a single os.Open+Seek with no retry/range semantics of their own
// (spec.md §4.1 "Scope").
func (p *Pool) OpenStream(ctx context.Context, rawURL string, offset int64) (ReadableByteStream, error) {
	if isLocalPath(rawURL) {
		return openLocalStream(rawURL, offset)
	}
	return p.openHTTPStream(ctx, rawURL, offset)
}

func isLocalPath(rawURL string) bool {
	if strings.HasPrefix(rawURL, "file://") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return u.Scheme == "" || u.Scheme == "file"
}

func localPath(rawURL string) string {
	return strings.TrimPrefix(rawURL, "file://")
}

func openLocalStream(rawURL string, offset int64) (ReadableByteStream, error) {
	path := localPath(rawURL)
	f, err := os.Open(path)
	if err != nil {
		return nil, &cos.ErrTransientIO{Op: "open " + path, Err: err}
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, &cos.ErrTransientIO{Op: "seek " + path, Err: err}
		}
	}
	return f, nil
}

func (p *Pool) openHTTPStream(ctx context.Context, rawURL string, offset int64) (ReadableByteStream, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, &cos.ErrTransientIO{Op: "acquire connection", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		p.release()
		return nil, &cos.ErrMalformedURL{Raw: rawURL, Reason: err.Error()}
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.release()
		// Do() failures (connect refused/reset, DNS, timeout, context
		// cancellation) are all transient from the retry layer's
		// perspective; only a well-formed non-2xx response can be
		// PermanentHTTP.
		return nil, &cos.ErrTransientIO{Op: "GET " + rawURL, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		return &releasingBody{ReadCloser: resp.Body, release: p.release}, nil
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			resp.Body.Close()
			p.release()
			return nil, &cos.ErrRangeUnsupported{URL: rawURL}
		}
		return &releasingBody{ReadCloser: resp.Body, release: p.release}, nil
	case resp.StatusCode >= 500:
		resp.Body.Close()
		p.release()
		return nil, &cos.ErrTransientIO{Op: "GET " + rawURL, Err: fmt.Errorf("http %d", resp.StatusCode)}
	default:
		resp.Body.Close()
		p.release()
		return nil, &cos.ErrPermanentHTTP{URL: rawURL, Status: resp.StatusCode}
	}
}

// releasingBody frees the connection-pool slot on Close, after the
// response body's own Close, so a slot is never returned early.
type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
