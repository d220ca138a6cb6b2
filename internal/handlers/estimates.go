package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/middleware"
	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/services"
	"ai-estimate-backend/internal/workflow"
)

const maxSubmissionMemory = 32 << 20

type EstimateHandler struct {
	estimates     *services.EstimateService
	subscriptions *services.SubscriptionService
	logger        *logrus.Logger
}

func NewEstimateHandler(estimates *services.EstimateService, subscriptions *services.SubscriptionService, logger *logrus.Logger) *EstimateHandler {
	return &EstimateHandler{
		estimates:     estimates,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// readFiles collects the "files" parts with their matching types[i] and
// descriptions[i] values.
func readFiles(form *multipart.Form) ([]workflow.File, error) {
	headers := form.File["files"]
	types := form.Value["types"]
	descriptions := form.Value["descriptions"]

	files := make([]workflow.File, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}

		file := workflow.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}
		if i < len(types) {
			file.Type = types[i]
		}
		if i < len(descriptions) {
			file.Description = descriptions[i]
		}
		files = append(files, file)
	}
	return files, nil
}

// SubmitEstimate godoc
// @Summary     Submit a project for an AI estimate
// @Description Checks the free quota, forwards the files to the workflow engine and charges one unit on success.
// @Tags        estimates
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       project_name formData string true  "Project name (min 3 characters)"
// @Param       notes_to_ai  formData string false "Notes for the estimator"
// @Param       files        formData file   true  "Attachments"
// @Param       types        formData string false "Category per file, by index"
// @Param       descriptions formData string false "Description per file, by index"
// @Success     200 {object} models.SubmitEstimateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     402 {object} models.QuotaExceededResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /estimates [post]
func (h *EstimateHandler) SubmitEstimate(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := c.Request.ParseMultipartForm(maxSubmissionMemory); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid multipart form", Message: err.Error()})
		return
	}
	files, err := readFiles(c.Request.MultipartForm)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid attachments", Message: err.Error()})
		return
	}

	in := services.SubmitInput{
		UID:         uid,
		ProjectName: c.PostForm("project_name"),
		Notes:       c.PostForm("notes_to_ai"),
		Files:       files,
	}
	if claims, ok := middleware.ClaimsFromContext(c); ok {
		in.UserPhone = claims.Phone
		in.UserName = claims.Name
	}

	out, err := h.estimates.Submit(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, services.ErrQuotaExceeded) {
			h.quotaExceeded(c, uid)
			return
		}
		log := h.logger.WithError(err).WithField("uid", uid)
		if statusFor(err) >= http.StatusInternalServerError {
			log.Error("estimate submission failed")
		} else {
			log.Info("estimate submission rejected")
		}
		respondError(c, err, "failed to submit estimate")
		return
	}

	c.JSON(http.StatusOK, models.SubmitEstimateResponse{
		ExecutionID: out.ExecutionID,
		Status:      "submitted",
		SharedLink:  out.SharedLink,
		Count:       out.Count,
	})
}

// quotaExceeded answers 402 and, when possible, hands back a checkout session
// so the client can redirect straight to payment.
func (h *EstimateHandler) quotaExceeded(c *gin.Context, uid string) {
	resp := models.QuotaExceededResponse{Error: "free estimate limit reached"}
	if h.subscriptions != nil {
		session, err := h.subscriptions.CreateCheckoutSession(c.Request.Context(), uid)
		if err != nil {
			h.logger.WithError(err).WithField("uid", uid).Warn("failed to create checkout session for blocked user")
		} else {
			resp.SessionID = session.ID
		}
	}
	c.JSON(http.StatusPaymentRequired, resp)
}

// ListEstimates godoc
// @Summary     Finished estimates, newest first
// @Tags        estimates
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.EstimateListResponse
// @Router      /estimates [get]
func (h *EstimateHandler) ListEstimates(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	estimates, err := h.estimates.History(c.Request.Context(), uid)
	if err != nil {
		h.logger.WithError(err).WithField("uid", uid).Error("failed to list estimates")
		respondError(c, err, "failed to list estimates")
		return
	}
	if estimates == nil {
		estimates = []models.Estimate{}
	}
	c.JSON(http.StatusOK, models.EstimateListResponse{Estimates: estimates})
}

// GetEstimate godoc
// @Summary     One estimate with its operations
// @Tags        estimates
// @Produce     json
// @Security    Bearer
// @Param       execution_id path string true "Execution id"
// @Success     200 {object} models.EstimateDetailResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /estimates/{execution_id} [get]
func (h *EstimateHandler) GetEstimate(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	detail, err := h.estimates.Detail(c.Request.Context(), uid, c.Param("execution_id"))
	if err != nil {
		respondError(c, err, "failed to load estimate")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// LatestDraft godoc
// @Summary     Last submitted form values
// @Tags        estimates
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.Draft
// @Failure     404 {object} models.ErrorResponse
// @Router      /drafts/latest [get]
func (h *EstimateHandler) LatestDraft(c *gin.Context) {
	uid, ok := requireUserID(c)
	if !ok {
		return
	}

	draft, err := h.estimates.LatestDraft(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err, "failed to load draft")
		return
	}
	c.JSON(http.StatusOK, draft)
}
