package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-estimate-backend/internal/middleware"
	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
)

// statusFor maps service errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidSubmission),
		errors.Is(err, services.ErrInvalidProgress),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidProfile),
		errors.Is(err, services.ErrNoSubscription),
		errors.Is(err, services.ErrSubscriptionEnded):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrSubscriptionMismatch):
		return http.StatusForbidden
	case errors.Is(err, services.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrWorkflowUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, message string) {
	c.JSON(statusFor(err), models.ErrorResponse{
		Error:   message,
		Message: err.Error(),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return "", false
	}
	return uid, true
}
