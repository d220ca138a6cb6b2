package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
)

type ProfileHandler struct {
	profiles *services.ProfileService
	logger   *logrus.Logger
}

func NewProfileHandler(profiles *services.ProfileService, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// GetProfile godoc
// @Summary     Current user's profile
// @Tags        profile
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.Profile
// @Failure     404 {object} models.ErrorResponse
// @Router      /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// CreateProfile godoc
// @Summary     Create the profile after sign-up
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       body body models.CreateProfileRequest true "Profile"
// @Success     201 {object} models.Profile
// @Failure     400 {object} models.ErrorResponse
// @Router      /profile [post]
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	profile, err := h.profiles.Create(c.Request.Context(), uid, req.Name, req.Role)
	if err != nil {
		h.logger.WithError(err).WithField("uid", uid).Warn("failed to create profile")
		respondError(c, err, "failed to create profile")
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// UpdateProfile godoc
// @Summary     Update name or role
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       body body models.UpdateProfileRequest true "Fields to change"
// @Success     200 {object} models.Profile
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /profile [patch]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), uid, req)
	if err != nil {
		respondError(c, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeleteProfile godoc
// @Summary     Delete profile, usage and estimates
// @Tags        profile
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SuccessResponse
// @Router      /profile [delete]
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.profiles.Delete(c.Request.Context(), uid); err != nil {
		h.logger.WithError(err).WithField("uid", uid).Error("failed to delete profile")
		respondError(c, err, "failed to delete profile")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}
