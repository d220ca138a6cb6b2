package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/metrics"
	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/workflow"
)

const minProjectNameLength = 3

// Bootstrap progress entries written before the engine takes over.
var (
	initializingOperation = models.Operation{Step: "Initializing estimate...", Status: models.OperationPending, Progress: 0}
	sendingOperation      = models.Operation{Step: "Sending data to workflow...", Status: models.OperationInProgress, Progress: 20}
)

type SubmitInput struct {
	UID         string
	UserPhone   string
	UserName    string
	ProjectName string
	Notes       string
	Files       []workflow.File
}

type SubmitOutput struct {
	ExecutionID string
	SharedLink  *string
	Count       int
}

// EstimateService runs the submission pipeline and serves estimate history.
type EstimateService struct {
	estimates EstimateStore
	usage     UsageStore
	profiles  ProfileStore
	archive   Archive
	workflow  Workflow
	freeLimit int
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewEstimateService(
	estimates EstimateStore,
	usage UsageStore,
	profiles ProfileStore,
	archive Archive,
	wf Workflow,
	freeLimit int,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *EstimateService {
	return &EstimateService{
		estimates: estimates,
		usage:     usage,
		profiles:  profiles,
		archive:   archive,
		workflow:  wf,
		freeLimit: freeLimit,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *EstimateService) FreeLimit() int {
	return s.freeLimit
}

// Submit gates on quota, hands the files to the workflow engine and charges
// one usage unit once the estimate record is written.
func (s *EstimateService) Submit(ctx context.Context, in SubmitInput) (*SubmitOutput, error) {
	if utf8.RuneCountInString(in.ProjectName) < minProjectNameLength {
		return nil, fmt.Errorf("%w: project name must be at least %d characters", ErrInvalidSubmission, minProjectNameLength)
	}
	if err := workflow.ValidateFiles(in.Files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	usage, err := s.usage.GetUsage(ctx, in.UID)
	if err != nil {
		return nil, err
	}
	if QuotaBlocked(usage, s.freeLimit) {
		s.metrics.QuotaBlocked()
		return nil, ErrQuotaExceeded
	}

	var role string
	if profile, err := s.profiles.GetProfile(ctx, in.UID); err == nil {
		role = profile.Role
		if in.UserName == "" {
			in.UserName = profile.Name
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	executionID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{"uid": in.UID, "execution_id": executionID})

	if _, err := s.estimates.AppendOperation(ctx, in.UID, executionID, initializingOperation); err != nil {
		return nil, err
	}

	s.archiveDraft(in, executionID, log)

	result, err := s.workflow.Submit(ctx, workflow.Submission{
		ExecutionID: executionID,
		UserID:      in.UID,
		ProjectName: in.ProjectName,
		Notes:       in.Notes,
		UserPhone:   in.UserPhone,
		UserName:    in.UserName,
		UserRole:    role,
		Files:       in.Files,
	})
	if err != nil {
		log.WithError(err).Warn("workflow submission failed")
		s.metrics.Submission("workflow_error")
		return nil, fmt.Errorf("%w: %v", ErrWorkflowUnavailable, err)
	}

	if _, err := s.estimates.AppendOperation(ctx, in.UID, executionID, sendingOperation); err != nil {
		return nil, err
	}

	estimate := &models.Estimate{
		UID:         in.UID,
		ExecutionID: executionID,
		ProjectName: in.ProjectName,
		Notes:       in.Notes,
	}
	if result.SharedLink != "" {
		link := result.SharedLink
		estimate.SharedLink = &link
	}
	if err := s.estimates.CreateEstimate(ctx, estimate); err != nil {
		return nil, err
	}

	out := &SubmitOutput{ExecutionID: executionID, SharedLink: estimate.SharedLink, Count: usage.Count}
	count, charged, err := s.estimates.ChargeEstimate(ctx, in.UID, executionID)
	if err != nil {
		// the engine already accepted the job
		log.WithError(err).Error("failed to charge usage for accepted estimate")
	} else {
		out.Count = count
		if !charged {
			log.Info("estimate failed before it was charged")
		}
	}

	s.metrics.Submission("accepted")
	log.Info("estimate submitted")
	return out, nil
}

// archiveDraft is best effort. A failed upload never blocks the submission.
func (s *EstimateService) archiveDraft(in SubmitInput, executionID string, log *logrus.Entry) {
	if s.archive == nil {
		return
	}

	draft := models.Draft{
		ExecutionID: executionID,
		ProjectName: in.ProjectName,
		Notes:       in.Notes,
		SavedAt:     s.now().UTC(),
	}
	for _, f := range in.Files {
		storagePath, url, err := s.archive.UploadFile(in.UID, executionID, f.Name, f.ContentType, f.Data)
		if err != nil {
			log.WithError(err).WithField("file", f.Name).Warn("failed to archive file")
			continue
		}
		draft.Files = append(draft.Files, models.DraftFile{
			Name:        f.Name,
			Type:        f.Type,
			Description: f.Description,
			Path:        storagePath,
			URL:         url,
		})
	}

	if err := s.archive.SaveDraft(in.UID, draft); err != nil {
		log.WithError(err).Warn("failed to save draft")
	}
}

func (s *EstimateService) LatestDraft(ctx context.Context, uid string) (*models.Draft, error) {
	if s.archive == nil {
		return nil, models.ErrNotFound
	}
	return s.archive.LoadDraft(uid)
}

func (s *EstimateService) History(ctx context.Context, uid string) ([]models.Estimate, error) {
	return s.estimates.ListFinishedEstimates(ctx, uid)
}

func (s *EstimateService) Detail(ctx context.Context, uid, executionID string) (*models.EstimateDetailResponse, error) {
	estimate, err := s.estimates.GetEstimate(ctx, uid, executionID)
	if err != nil {
		return nil, err
	}
	ops, err := s.estimates.ListOperations(ctx, uid, executionID)
	if err != nil {
		return nil, err
	}
	return &models.EstimateDetailResponse{Estimate: *estimate, Operations: ops}, nil
}
