package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
)

const (
	debugKey   = "testKey"
	debugValue = 42
)

type DebugWriter interface {
	WriteDebug(ctx context.Context, key string, val int) (int, error)
}

// DiagnosticsHandler serves the provider connectivity probes.
type DiagnosticsHandler struct {
	subscriptions *services.SubscriptionService
	debug         DebugWriter
	logger        *logrus.Logger
}

func NewDiagnosticsHandler(subscriptions *services.SubscriptionService, debug DebugWriter, logger *logrus.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		subscriptions: subscriptions,
		debug:         debug,
		logger:        logger,
	}
}

// StripeTest godoc
// @Summary     Payment provider connectivity
// @Tags        diagnostics
// @Produce     json
// @Success     200 {object} models.StripeTestResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /stripe-test [get]
func (h *DiagnosticsHandler) StripeTest(c *gin.Context) {
	price, err := h.subscriptions.SamplePrice(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("stripe connectivity check failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "stripe unreachable", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StripeTestResponse{Stripe: "ok", SamplePrice: price})
}

// StripeWhoami godoc
// @Summary     Payment provider account id
// @Tags        diagnostics
// @Produce     json
// @Success     200 {object} models.StripeWhoamiResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /stripe-whoami [get]
func (h *DiagnosticsHandler) StripeWhoami(c *gin.Context) {
	account, err := h.subscriptions.AccountID(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("stripe account lookup failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "stripe unreachable", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StripeWhoamiResponse{Account: account})
}

// DebugWrite godoc
// @Summary     Database write probe
// @Tags        diagnostics
// @Produce     json
// @Success     200 {object} models.DebugWriteResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /debug-write [post]
func (h *DiagnosticsHandler) DebugWrite(c *gin.Context) {
	val, err := h.debug.WriteDebug(c.Request.Context(), debugKey, debugValue)
	if err != nil {
		h.logger.WithError(err).Error("debug write failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "debug write failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.DebugWriteResponse{Wrote: val})
}
