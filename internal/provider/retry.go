package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// A webhook sender is waiting on the other end, so the retry budget is
// small: four attempts with quadratic backoff fit inside the per-tenant
// generation timeout that bounds ctx.
const maxAttempts = 4

// Only error bodies this long are kept for diagnostics.
const errBodyLimit = 4 << 10

// transientError is an upstream status worth another attempt.
type transientError struct {
	status int
	body   string
}

func (e *transientError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.status, e.body)
}

func transient(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

func backoffFor(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * time.Second
	return base + time.Duration(rand.Int64N(int64(base/2+1)))
}

// doWithRetry runs one backend call, retrying network failures, 5xx and
// 429 until the attempt budget or the reply window runs out. Window
// expiry is surfaced as the wrapped context error so callers can tell a
// timed-out generation from a broken upstream.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			wait := backoffFor(attempt - 1)
			logger.Warn("retrying backend call", "attempt", attempt, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("reply window closed before retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("reply window closed: %w", ctx.Err())
			}
			lastErr = err
			logger.Warn("backend call failed", "attempt", attempt, "error", err)
			continue
		}

		if transient(resp.StatusCode) {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
			resp.Body.Close()
			lastErr = &transientError{status: resp.StatusCode, body: string(body)}
			logger.Warn("backend returned transient status", "attempt", attempt, "status", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("backend unavailable after %d attempts: %w", maxAttempts, lastErr)
}
