package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
)

// Backoff is the wait before each retry.
type Backoff []time.Duration

var DefaultBackoff = Backoff{1 * time.Second, 2 * time.Second, 4 * time.Second}

// RetryWithBackoff runs fn up to maxRetries times. Client errors from the
// payment API are returned immediately.
func (b Backoff) RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		lastErr = err
		if i < len(b) && i < maxRetries-1 {
			select {
			case <-time.After(b[i]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func retryable(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}
