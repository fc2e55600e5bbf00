// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers for components that call remote
// services.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 and 503 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryAfter caps a server-provided Retry-After value.
var MaxRetryAfter = 60 * time.Second

const defaultMaxRetries = 5

// DoWithRetry executes req and retries on HTTP 429 (Too Many Requests) and
// 503 (Service Unavailable). The delay honours a Retry-After header given in
// seconds and otherwise doubles from RetryBaseDelay on each attempt.
//
// Requests with a body are replayed through req.GetBody, so callers should
// build them with http.NewRequestWithContext and a bytes.Reader. When
// maxRetries is 0 the default (5) is used. If ctx is cancelled during a
// backoff wait the function returns ctx.Err(). After exhausting retries the
// last response is returned unread so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := backoff(attempt, resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func backoff(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		if d > MaxRetryAfter {
			d = MaxRetryAfter
		}
		return d
	}
	return RetryBaseDelay << uint(attempt)
}
