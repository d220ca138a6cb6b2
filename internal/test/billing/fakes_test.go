package billing_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/models"
)

type fakeSubscriptions struct {
	subs  map[string]*stripe.Subscription
	err   error
	calls int
	// onGet runs before each lookup, with the call number.
	onGet func(call int)
}

func (f *fakeSubscriptions) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	f.calls++
	if f.onGet != nil {
		f.onGet(f.calls)
	}
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Msg: "No such subscription"}
	}
	return sub, nil
}

type fakeUsageStore struct {
	mu      sync.Mutex
	patches []models.SubscriptionPatch
	lapsed  []models.UsageRecord
	err     error
}

func (f *fakeUsageStore) ApplySubscriptionPatch(ctx context.Context, patch models.SubscriptionPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.patches = append(f.patches, patch)
	return nil
}

func (f *fakeUsageStore) ListLapsedSubscriptions(ctx context.Context, before time.Time) ([]models.UsageRecord, error) {
	return f.lapsed, nil
}

type fakeDeduper struct {
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: map[string]bool{}}
}

func (f *fakeDeduper) Exists(ctx context.Context, key string) (bool, error) {
	return f.seen[key], nil
}

func (f *fakeDeduper) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.seen[key] = true
	return nil
}

func newEvent(t *testing.T, id string, eventType stripe.EventType, object interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{
		ID:   id,
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}
