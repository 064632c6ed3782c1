// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxBodyBytes caps how much of a response body Get reads.
var MaxBodyBytes int64 = 20 << 20

// ErrTooManyRedirects is returned when a fetch exceeds FetchOptions.MaxRedirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// FetchOptions controls a single GET.
type FetchOptions struct {
	Headers      map[string]string
	Timeout      time.Duration
	MaxRedirects int
}

// FetchResult is the outcome of a GET that reached the server. Non-2xx
// statuses are returned as results, not errors, so callers can map them.
type FetchResult struct {
	Status      int
	Body        []byte
	FinalURL    string
	ContentType string
}

// OK reports whether the status is 2xx.
func (r *FetchResult) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Fetcher performs bounded GET requests. The zero value uses
// http.DefaultTransport; tests inject a transport through Transport.
type Fetcher struct {
	Transport http.RoundTripper
}

// Get fetches rawURL with the given headers, an absolute timeout covering
// redirects and body read, and a redirect cap.
func (f *Fetcher) Get(ctx context.Context, rawURL string, opts FetchOptions) (*FetchResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	maxRedirects := opts.MaxRedirects
	client := &http.Client{
		Transport: f.Transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &FetchResult{
		Status:      resp.StatusCode,
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
