package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"ai-estimate-backend/internal/billing"
	"ai-estimate-backend/internal/config"
	"ai-estimate-backend/internal/models"
)

const maxWebhookBodyBytes = int64(65536)

type WebhookHandler struct {
	config     *config.Config
	reconciler *billing.Reconciler
	logger     *logrus.Logger
}

func NewWebhookHandler(cfg *config.Config, reconciler *billing.Reconciler, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		config:     cfg,
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleStripeWebhook godoc
// @Summary     Payment provider webhook
// @Description Verifies the signature in production and applies subscription events to usage. Always acknowledges a verified event.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string false "Signature header (required in production)"
// @Success     200 {object} models.WebhookAck
// @Failure     400 {object} models.ErrorResponse
// @Router      /stripe-webhook [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read request body", Message: err.Error()})
		return
	}

	var event stripe.Event
	if h.config.IsProduction() {
		event, err = webhook.ConstructEventWithOptions(
			body,
			c.GetHeader("Stripe-Signature"),
			h.config.StripeWebhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
		)
		if err != nil {
			h.logger.WithError(err).Warn("webhook signature verification failed")
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "signature verification failed", Message: err.Error()})
			return
		}
	} else if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to parse event", Message: err.Error()})
		return
	}

	if err := h.reconciler.Handle(c.Request.Context(), event); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"event_id":   event.ID,
		}).Error("webhook event not applied")
	}

	c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}
