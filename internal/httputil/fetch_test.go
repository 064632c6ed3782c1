// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherGet_SendsHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trust-engine-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer ts.Close()

	var f Fetcher
	res, err := f.Get(context.Background(), ts.URL, FetchOptions{
		Headers: map[string]string{"User-Agent": "trust-engine-test"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "<html>ok</html>", string(res.Body))
	assert.Equal(t, "text/html", res.ContentType)
}

func TestFetcherGet_NonOKIsResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	var f Fetcher
	res, err := f.Get(context.Background(), ts.URL, FetchOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, http.StatusNotFound, res.Status)
}

// redirectServer redirects /hop/N to /hop/N-1 until /hop/0, which answers 200.
func redirectServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/hop/{n}", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		var n int
		fmt.Sscanf(r.PathValue("n"), "%d", &n)
		if n == 0 {
			fmt.Fprint(w, "landed")
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
	})
	return httptest.NewServer(mux), &hits
}

func TestFetcherGet_FollowsRedirectsUpToLimit(t *testing.T) {
	ts, _ := redirectServer(t)
	defer ts.Close()

	var f Fetcher
	res, err := f.Get(context.Background(), ts.URL+"/hop/5", FetchOptions{MaxRedirects: 5, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "landed", string(res.Body))
	assert.Equal(t, ts.URL+"/hop/0", res.FinalURL)
}

func TestFetcherGet_TooManyRedirects(t *testing.T) {
	ts, _ := redirectServer(t)
	defer ts.Close()

	var f Fetcher
	_, err := f.Get(context.Background(), ts.URL+"/hop/6", FetchOptions{MaxRedirects: 5, Timeout: 5 * time.Second})
	assert.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestFetcherGet_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	var f Fetcher
	_, err := f.Get(context.Background(), ts.URL, FetchOptions{Timeout: 50 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetcherGet_BodyCapped(t *testing.T) {
	old := MaxBodyBytes
	MaxBodyBytes = 4
	defer func() { MaxBodyBytes = old }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "0123456789")
	}))
	defer ts.Close()

	var f Fetcher
	res, err := f.Get(context.Background(), ts.URL, FetchOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "0123", string(res.Body))
}
