package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/billing"
)

var fastBackoff = billing.Backoff{time.Millisecond, time.Millisecond, time.Millisecond}

func TestRetryWithBackoff(t *testing.T) {
	callCount := 0
	err := fastBackoff.RetryWithBackoff(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	err := fastBackoff.RetryWithBackoff(context.Background(), func() error {
		return assert.AnError
	}, 3)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRetryWithBackoff_ClientErrorNotRetried(t *testing.T) {
	callCount := 0
	err := fastBackoff.RetryWithBackoff(context.Background(), func() error {
		callCount++
		return &stripe.Error{HTTPStatusCode: 400, Msg: "bad request"}
	}, 3)

	assert.Error(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryWithBackoff_RateLimitRetried(t *testing.T) {
	callCount := 0
	err := fastBackoff.RetryWithBackoff(context.Background(), func() error {
		callCount++
		if callCount == 1 {
			return &stripe.Error{HTTPStatusCode: 429, Msg: "slow down"}
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 2, callCount)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := billing.Backoff{time.Hour}.RetryWithBackoff(ctx, func() error {
		return assert.AnError
	}, 2)

	assert.ErrorIs(t, err, context.Canceled)
}
