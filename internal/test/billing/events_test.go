package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/billing"
	"ai-estimate-backend/internal/models"
)

func TestDecode_CheckoutCompleted(t *testing.T) {
	event := newEvent(t, "evt_1", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_1",
		"object":       "checkout.session",
		"metadata":     map[string]string{"uid": "user-1"},
		"subscription": "sub_1",
	})

	decoded, err := billing.Decode(event)
	require.NoError(t, err)
	assert.Equal(t, billing.CheckoutCompleted{UID: "user-1", SubscriptionID: "sub_1"}, decoded)
}

func TestDecode_CheckoutFallsBackToClientReference(t *testing.T) {
	event := newEvent(t, "evt_1", "checkout.session.completed", map[string]interface{}{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": "user-2",
	})

	decoded, err := billing.Decode(event)
	require.NoError(t, err)
	assert.Equal(t, billing.CheckoutCompleted{UID: "user-2"}, decoded)
}

func TestDecode_Invoice(t *testing.T) {
	event := newEvent(t, "evt_2", "invoice.payment_failed", map[string]interface{}{
		"id":           "in_1",
		"object":       "invoice",
		"subscription": "sub_9",
	})

	decoded, err := billing.Decode(event)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceSettled{SubscriptionID: "sub_9", Succeeded: false}, decoded)
}

func TestDecode_Unhandled(t *testing.T) {
	event := newEvent(t, "evt_3", "customer.created", map[string]interface{}{"id": "cus_1"})

	decoded, err := billing.Decode(event)
	require.NoError(t, err)
	assert.Equal(t, billing.Unhandled{Type: "customer.created"}, decoded)
}

func TestDecode_MissingData(t *testing.T) {
	_, err := billing.Decode(stripe.Event{Type: "invoice.payment_succeeded"})
	assert.Error(t, err)
}

func TestPatchFromSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	periodEnd := now.Add(30 * 24 * time.Hour)

	tests := []struct {
		name          string
		status        stripe.SubscriptionStatus
		cancelAtEnd   bool
		wantPaid      bool
		wantAutoRenew bool
	}{
		{"active renews", stripe.SubscriptionStatusActive, false, true, true},
		{"trialing is paid", stripe.SubscriptionStatusTrialing, false, true, true},
		{"active but cancelling", stripe.SubscriptionStatusActive, true, true, false},
		{"past due is unpaid", stripe.SubscriptionStatusPastDue, false, false, true},
		{"canceled", stripe.SubscriptionStatusCanceled, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &stripe.Subscription{
				ID:                "sub_1",
				Status:            tt.status,
				CancelAtPeriodEnd: tt.cancelAtEnd,
				CurrentPeriodEnd:  periodEnd.Unix(),
			}

			patch := billing.PatchFromSubscription("user-1", sub, now)

			assert.Equal(t, "user-1", patch.UID)
			assert.Equal(t, tt.wantPaid, patch.Paid)
			assert.Equal(t, string(tt.status), patch.Status)
			require.NotNil(t, patch.SubscriptionID)
			assert.Equal(t, "sub_1", *patch.SubscriptionID)
			require.NotNil(t, patch.CurrentPeriodEnd)
			assert.True(t, periodEnd.Equal(*patch.CurrentPeriodEnd))
			require.NotNil(t, patch.AutoRenew)
			assert.Equal(t, tt.wantAutoRenew, *patch.AutoRenew)
			assert.Equal(t, now, patch.UpdatedAt)
		})
	}
}

func TestPatchFromCheckout(t *testing.T) {
	now := time.Now()
	patch := billing.PatchFromCheckout("user-1", now)

	assert.True(t, patch.Paid)
	assert.Equal(t, models.SubscriptionActive, patch.Status)
	assert.Nil(t, patch.SubscriptionID)
	assert.Nil(t, patch.CurrentPeriodEnd)
}
