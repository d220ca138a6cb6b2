package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"ai-estimate-backend/internal/billing"
	"ai-estimate-backend/internal/config"
	"ai-estimate-backend/internal/handlers"
	"ai-estimate-backend/internal/test/fakes"
)

const webhookSecret = "whsec_test_secret"

func newWebhookRouter(env string, store *fakes.Store, provider *fakes.Provider) *gin.Engine {
	cfg := &config.Config{Environment: env, StripeWebhookSecret: webhookSecret}
	reconciler := billing.NewReconciler(provider, store, nil, quietLogger(), nil).
		WithBackoff(billing.Backoff{time.Millisecond})

	router := newRouter()
	router.POST("/stripe-webhook", handlers.NewWebhookHandler(cfg, reconciler, quietLogger()).HandleStripeWebhook)
	return router
}

func eventPayload(t *testing.T, id, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data":   map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return data
}

func postWebhook(router *gin.Engine, payload []byte, signature string) (int, string) {
	req, _ := http.NewRequest("POST", "/stripe-webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := serve(router, req)
	return w.Code, w.Body.String()
}

func TestWebhook_CheckoutWithoutUIDAcknowledged(t *testing.T) {
	store := fakes.NewStore()
	router := newWebhookRouter("development", store, fakes.NewProvider())

	code, body := postWebhook(router, eventPayload(t, "evt_1", "checkout.session.completed", map[string]interface{}{
		"id":     "cs_1",
		"object": "checkout.session",
	}), "")

	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"received":true}`, body)
	assert.False(t, store.Usage("user-1").Paid)
}

func TestWebhook_CheckoutMarksPaid(t *testing.T) {
	store := fakes.NewStore()
	provider := fakes.NewProvider()
	provider.Subscriptions["sub_1"] = &stripe.Subscription{
		ID:               "sub_1",
		Status:           stripe.SubscriptionStatusActive,
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).Unix(),
		Metadata:         map[string]string{"uid": "user-1"},
	}
	store.SetUsage(fakeUsage("user-1", 3))
	router := newWebhookRouter("development", store, provider)

	code, _ := postWebhook(router, eventPayload(t, "evt_2", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_1",
		"object":       "checkout.session",
		"metadata":     map[string]string{"uid": "user-1"},
		"subscription": "sub_1",
	}), "")

	assert.Equal(t, http.StatusOK, code)
	usage := store.Usage("user-1")
	assert.True(t, usage.Paid)
	assert.Equal(t, "active", usage.Status)
	assert.Equal(t, 3, usage.Count)
}

func TestWebhook_ProcessingErrorStillAcknowledged(t *testing.T) {
	store := fakes.NewStore()
	router := newWebhookRouter("development", store, fakes.NewProvider())

	code, body := postWebhook(router, eventPayload(t, "evt_3", "invoice.payment_succeeded", map[string]interface{}{
		"id":           "in_1",
		"object":       "invoice",
		"subscription": "sub_unknown",
	}), "")

	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"received":true}`, body)
}

func TestWebhook_InvalidJSON(t *testing.T) {
	router := newWebhookRouter("development", fakes.NewStore(), fakes.NewProvider())

	code, _ := postWebhook(router, []byte("{nope"), "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWebhook_ProductionRequiresSignature(t *testing.T) {
	store := fakes.NewStore()
	router := newWebhookRouter("production", store, fakes.NewProvider())
	payload := eventPayload(t, "evt_4", "customer.subscription.updated", map[string]interface{}{
		"id":       "sub_1",
		"object":   "subscription",
		"status":   "active",
		"metadata": map[string]string{"uid": "user-1"},
	})

	code, _ := postWebhook(router, payload, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = postWebhook(router, payload, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, store.Usage("user-1").Paid)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  webhookSecret,
	})
	code, body := postWebhook(router, signed.Payload, signed.Header)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"received":true}`, body)
	assert.True(t, store.Usage("user-1").Paid)
}
