// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP fetch capability used by the input
// adapters and the backoff arithmetic used by provider retries.
package httputil

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Jitter returns a random duration in [0, max). Tests override it to make
// backoff delays deterministic.
var Jitter = func(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// Backoff returns the delay before retry number attempt (0-based):
// base * 2^attempt plus a random jitter below maxJitter. With a 500ms base
// the deterministic part is 500ms, 1s, 2s.
func Backoff(base time.Duration, attempt int, maxJitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(math.Pow(2, float64(attempt)))*base + Jitter(maxJitter)
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
