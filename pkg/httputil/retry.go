package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryBaseDelay is the first backoff delay; it doubles on every attempt.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

// StatusError is returned when the final attempt still answered with a
// retryable status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retryable reports whether a status code is worth another attempt.
func Retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// DoWithRetry executes req and retries transport errors, 429 and 5xx
// responses with exponential backoff, at most maxRetries extra times.
// Non-retryable responses (2xx, 4xx) are returned as-is for the caller to
// inspect. Cancelling ctx stops the loop and returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	return retry.DoWithData(
		func() (*http.Response, error) {
			resp, err := client.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if Retryable(resp.StatusCode) {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil, &StatusError{Code: resp.StatusCode}
			}
			return resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)+1),
		retry.Delay(RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
}
