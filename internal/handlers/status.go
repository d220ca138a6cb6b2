package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
)

type StatusHandler struct {
	progress *services.ProgressService
	logger   *logrus.Logger
}

func NewStatusHandler(progress *services.ProgressService, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{progress: progress, logger: logger}
}

// GetStatus godoc
// @Summary     Latest progress of an estimate
// @Tags        estimates
// @Produce     json
// @Security    Bearer
// @Param       execution_id path string true "Execution id"
// @Success     200 {object} models.ProgressView
// @Failure     404 {object} models.ErrorResponse
// @Router      /estimates/{execution_id}/status [get]
func (h *StatusHandler) GetStatus(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	view, err := h.progress.Current(c.Request.Context(), uid, c.Param("execution_id"))
	if err != nil {
		respondError(c, err, "failed to load progress")
		return
	}
	c.JSON(http.StatusOK, view)
}

// StreamStatus godoc
// @Summary     Progress as server-sent events
// @Description Emits a "progress" event per operation and closes after the first terminal view.
// @Tags        estimates
// @Produce     text/event-stream
// @Security    Bearer
// @Param       execution_id path string true "Execution id"
// @Success     200 {object} models.ProgressView
// @Failure     404 {object} models.ErrorResponse
// @Router      /estimates/{execution_id}/events [get]
func (h *StatusHandler) StreamStatus(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}
	executionID := c.Param("execution_id")

	started := false
	err := h.progress.Watch(c.Request.Context(), uid, executionID, func(view models.ProgressView) bool {
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
		}
		c.SSEvent("progress", view)
		c.Writer.Flush()
		return !c.IsAborted()
	})
	if err != nil {
		log := h.logger.WithError(err).WithFields(logrus.Fields{
			"uid":          uid,
			"execution_id": executionID,
		})
		if started {
			log.Warn("progress stream ended with error")
			return
		}
		if statusFor(err) == http.StatusInternalServerError {
			log.Error("failed to open progress stream")
		}
		respondError(c, err, "failed to open progress stream")
	}
}
