package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/config"
	"ai-estimate-backend/internal/handlers"
	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
	"ai-estimate-backend/internal/test/fakes"
)

func newSubscriptionRouter(uid string, store *fakes.Store, provider *fakes.Provider) *gin.Engine {
	logger := quietLogger()
	cfg := &config.Config{StripePriceID: "price_123", FrontendURL: "https://app.example.com", FreeLimit: 3}
	h := handlers.NewSubscriptionHandler(services.NewSubscriptionService(provider, store, cfg, logger), logger)

	router := newRouter()
	api := router.Group("/", asUser(uid))
	api.POST("/create-subscription", h.CreateSubscription)
	api.POST("/cancel-subscription", h.CancelSubscription)
	api.POST("/resume-subscription", h.ResumeSubscription)
	api.GET("/get-subscription-status", h.GetSubscriptionStatus)
	api.POST("/get-subscription-status", h.GetSubscriptionStatus)
	return router
}

func TestCreateSubscription(t *testing.T) {
	store := fakes.NewStore()
	provider := fakes.NewProvider()
	router := newSubscriptionRouter("user-1", store, provider)

	w := doJSON(router, "POST", "/create-subscription", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)

	customerID := provider.Customers["user-1"]
	require.NotEmpty(t, customerID)
	assert.Equal(t, "user-1", provider.CustomerMetadata[customerID]["uid"])
}

func TestCreateSubscription_ProviderError(t *testing.T) {
	provider := fakes.NewProvider()
	provider.CheckoutErr = &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "No such price: 'price_123'"}
	router := newSubscriptionRouter("user-1", fakes.NewStore(), provider)

	w := doJSON(router, "POST", "/create-subscription", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.CheckoutErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "No such price: 'price_123'", resp.Error)
	assert.Equal(t, "invalid_request_error", resp.Type)
}

func TestCancelAndResumeSubscription(t *testing.T) {
	store := fakes.NewStore()
	provider := fakes.NewProvider()
	subID := "sub_1"
	provider.Subscriptions[subID] = &stripe.Subscription{ID: subID, Status: stripe.SubscriptionStatusActive, Metadata: map[string]string{"uid": "user-1"}}
	store.SetUsage(models.UsageRecord{UID: "user-1", Paid: true, Status: "active", SubscriptionID: &subID, AutoRenew: true})
	router := newSubscriptionRouter("user-1", store, provider)

	w := doJSON(router, "POST", "/cancel-subscription", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, store.Usage("user-1").AutoRenew)
	assert.True(t, provider.Subscriptions[subID].CancelAtPeriodEnd)

	w = doJSON(router, "POST", "/resume-subscription", map[string]string{"subscriptionId": subID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.Usage("user-1").AutoRenew)
}

func TestCancelSubscription_Errors(t *testing.T) {
	store := fakes.NewStore()
	provider := fakes.NewProvider()
	provider.Subscriptions["sub_other"] = &stripe.Subscription{ID: "sub_other", Status: stripe.SubscriptionStatusActive, Metadata: map[string]string{"uid": "user-2"}}
	router := newSubscriptionRouter("user-1", store, provider)

	w := doJSON(router, "POST", "/cancel-subscription", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "POST", "/cancel-subscription", map[string]string{"subscriptionId": "sub_other"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, provider.Subscriptions["sub_other"].CancelAtPeriodEnd)
}

func TestGetSubscriptionStatus(t *testing.T) {
	store := fakes.NewStore()
	store.SetUsage(fakeUsage("user-1", 1))
	router := newSubscriptionRouter("user-1", store, fakes.NewProvider())

	for _, method := range []string{"GET", "POST"} {
		w := doJSON(router, method, "/get-subscription-status", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.EqualValues(t, 1, resp["count"])
		assert.EqualValues(t, 2, resp["remaining"])
		assert.Equal(t, false, resp["paid"])
	}
}
