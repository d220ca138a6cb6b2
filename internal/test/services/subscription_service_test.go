package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/config"
	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
	"ai-estimate-backend/internal/test/fakes"
)

func newSubscriptionFixture() (*fakes.Store, *fakes.Provider, *services.SubscriptionService) {
	store := fakes.NewStore()
	provider := fakes.NewProvider()
	cfg := &config.Config{
		StripePriceID: "price_123",
		FrontendURL:   "https://app.example.com",
		FreeLimit:     3,
	}
	return store, provider, services.NewSubscriptionService(provider, store, cfg, quietLogger())
}

func TestCreateCheckoutSession_CreatesCustomerOnce(t *testing.T) {
	store, provider, svc := newSubscriptionFixture()
	ctx := context.Background()

	session, err := svc.CreateCheckoutSession(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	customerID := provider.Customers["user-1"]
	require.NotEmpty(t, customerID)
	assert.Equal(t, "user-1", provider.CustomerMetadata[customerID]["uid"])

	stored, err := store.GetStripeCustomerID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, customerID, stored)

	require.Len(t, provider.Sessions, 1)
	req := provider.Sessions[0]
	assert.Equal(t, "user-1", req.UID)
	assert.Equal(t, customerID, req.CustomerID)
	assert.Equal(t, "price_123", req.PriceID)
	assert.Equal(t, "https://app.example.com/?subscribed=true", req.SuccessURL)
	assert.Equal(t, "https://app.example.com/?subscribed=false", req.CancelURL)

	_, err = svc.CreateCheckoutSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, provider.Customers, 1)
	assert.Equal(t, customerID, provider.Sessions[1].CustomerID)
}

func TestEnsureCustomer_ReusesSearchResult(t *testing.T) {
	store, provider, svc := newSubscriptionFixture()
	provider.Customers["user-1"] = "cus_existing"

	customerID, err := svc.EnsureCustomer(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", customerID)

	stored, _ := store.GetStripeCustomerID(context.Background(), "user-1")
	assert.Equal(t, "cus_existing", stored)
}

func seedSubscription(store *fakes.Store, provider *fakes.Provider, uid, owner string, status stripe.SubscriptionStatus) {
	subID := "sub_1"
	provider.Subscriptions[subID] = &stripe.Subscription{
		ID:       subID,
		Status:   status,
		Metadata: map[string]string{"uid": owner},
	}
	store.SetUsage(models.UsageRecord{UID: uid, Paid: true, Status: string(status), SubscriptionID: &subID, AutoRenew: true})
}

func TestCancel_TurnsOffAutoRenew(t *testing.T) {
	store, provider, svc := newSubscriptionFixture()
	seedSubscription(store, provider, "user-1", "user-1", stripe.SubscriptionStatusActive)

	usage, err := svc.Cancel(context.Background(), "user-1", "")
	require.NoError(t, err)

	assert.False(t, usage.AutoRenew)
	assert.True(t, usage.Paid)
	assert.True(t, provider.Subscriptions["sub_1"].CancelAtPeriodEnd)

	usage, err = svc.Resume(context.Background(), "user-1", "sub_1")
	require.NoError(t, err)
	assert.True(t, usage.AutoRenew)
	assert.False(t, provider.Subscriptions["sub_1"].CancelAtPeriodEnd)
}

func TestCancel_RejectsForeignSubscription(t *testing.T) {
	store, provider, svc := newSubscriptionFixture()
	seedSubscription(store, provider, "user-1", "user-2", stripe.SubscriptionStatusActive)

	_, err := svc.Cancel(context.Background(), "user-1", "sub_1")
	assert.ErrorIs(t, err, services.ErrSubscriptionMismatch)
	assert.False(t, provider.Subscriptions["sub_1"].CancelAtPeriodEnd)
}

func TestResume_RejectsEndedSubscription(t *testing.T) {
	store, provider, svc := newSubscriptionFixture()
	seedSubscription(store, provider, "user-1", "user-1", stripe.SubscriptionStatusCanceled)

	_, err := svc.Resume(context.Background(), "user-1", "")
	assert.ErrorIs(t, err, services.ErrSubscriptionEnded)
}

func TestCancel_WithoutSubscription(t *testing.T) {
	_, _, svc := newSubscriptionFixture()

	_, err := svc.Cancel(context.Background(), "user-1", "")
	assert.ErrorIs(t, err, services.ErrNoSubscription)
}

func TestStatus_Remaining(t *testing.T) {
	store, _, svc := newSubscriptionFixture()
	store.SetUsage(models.UsageRecord{UID: "user-1", Count: 2})

	status, err := svc.Status(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Count)
	assert.Equal(t, 3, status.FreeLimit)
	assert.Equal(t, 1, status.Remaining)
}
