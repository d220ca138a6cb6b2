package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/middleware"
	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
)

type AccountHandler struct {
	accounts *services.AccountService
	logger   *logrus.Logger
}

func NewAccountHandler(accounts *services.AccountService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// Disable godoc
// @Summary     Disable account
// @Description Disables the caller's identity and revokes all sessions. The token must come from a sign-in within the last five minutes.
// @Tags        account
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SuccessResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /account/disable [post]
func (h *AccountHandler) Disable(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}
	token := c.GetString(middleware.TokenKey)

	if err := h.accounts.Disable(c.Request.Context(), uid, token); err != nil {
		h.logger.WithError(err).WithField("uid", uid).Error("account disable failed")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to disable account", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}
