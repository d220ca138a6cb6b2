package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
)

type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
	logger        *logrus.Logger
}

func NewSubscriptionHandler(subscriptions *services.SubscriptionService, logger *logrus.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, logger: logger}
}

// checkoutError keeps the provider's error type visible to the client.
func checkoutError(err error) models.CheckoutErrorResponse {
	resp := models.CheckoutErrorResponse{Error: err.Error()}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		resp.Error = stripeErr.Msg
		resp.Type = string(stripeErr.Type)
	}
	return resp
}

// CreateSubscription godoc
// @Summary     Start a subscription checkout
// @Tags        subscriptions
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SessionResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.CheckoutErrorResponse
// @Router      /create-subscription [post]
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	session, err := h.subscriptions.CreateCheckoutSession(c.Request.Context(), uid)
	if err != nil {
		h.logger.WithError(err).WithField("uid", uid).Error("failed to create checkout session")
		c.JSON(http.StatusInternalServerError, checkoutError(err))
		return
	}

	c.JSON(http.StatusOK, models.SessionResponse{SessionID: session.ID})
}

// CancelSubscription godoc
// @Summary     Stop auto-renewal at period end
// @Tags        subscriptions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       body body models.SubscriptionActionRequest false "Subscription id (defaults to the stored one)"
// @Success     200 {object} models.UsageRecord
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /cancel-subscription [post]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	h.setAutoRenew(c, false)
}

// ResumeSubscription godoc
// @Summary     Turn auto-renewal back on
// @Tags        subscriptions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       body body models.SubscriptionActionRequest false "Subscription id (defaults to the stored one)"
// @Success     200 {object} models.UsageRecord
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /resume-subscription [post]
func (h *SubscriptionHandler) ResumeSubscription(c *gin.Context) {
	h.setAutoRenew(c, true)
}

func (h *SubscriptionHandler) setAutoRenew(c *gin.Context, autoRenew bool) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.SubscriptionActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
			return
		}
	}

	var (
		usage *models.UsageRecord
		err   error
	)
	if autoRenew {
		usage, err = h.subscriptions.Resume(c.Request.Context(), uid, req.SubscriptionID)
	} else {
		usage, err = h.subscriptions.Cancel(c.Request.Context(), uid, req.SubscriptionID)
	}
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"uid":        uid,
			"auto_renew": autoRenew,
		}).Warn("subscription update failed")
		respondError(c, err, "failed to update subscription")
		return
	}

	c.JSON(http.StatusOK, usage)
}

// GetSubscriptionStatus godoc
// @Summary     Usage and subscription status
// @Tags        subscriptions
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SubscriptionStatusResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /get-subscription-status [get]
func (h *SubscriptionHandler) GetSubscriptionStatus(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	status, err := h.subscriptions.Status(c.Request.Context(), uid)
	if err != nil {
		h.logger.WithError(err).WithField("uid", uid).Error("failed to read subscription status")
		respondError(c, err, "failed to read subscription status")
		return
	}
	c.JSON(http.StatusOK, status)
}
