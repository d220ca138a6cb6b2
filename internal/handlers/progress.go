package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
)

type ProgressHandler struct {
	progress      *services.ProgressService
	callbackToken string
	logger        *logrus.Logger
}

func NewProgressHandler(progress *services.ProgressService, callbackToken string, logger *logrus.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, callbackToken: callbackToken, logger: logger}
}

// Record godoc
// @Summary     Workflow progress callback
// @Description Appends an operation under the estimate. A failed operation returns the usage unit.
// @Tags        progress
// @Accept      json
// @Produce     json
// @Param       body body models.ProgressRequest true "Progress entry"
// @Success     200 {object} models.ProgressAck
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /progress [post]
func (h *ProgressHandler) Record(c *gin.Context) {
	if h.callbackToken != "" {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.callbackToken)) != 1 {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid callback token"})
			return
		}
	}

	var req models.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	op, err := h.progress.Record(c.Request.Context(), req)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("execution_id", req.ExecutionID).Error("failed to record progress")
		}
		respondError(c, err, "failed to record progress")
		return
	}

	c.JSON(http.StatusOK, models.ProgressAck{Status: "ok", Key: op.Key})
}
