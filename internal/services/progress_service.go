package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/metrics"
	"ai-estimate-backend/internal/models"
)

// ProgressService records engine progress and renders it for the client.
type ProgressService struct {
	estimates EstimateStore
	usage     UsageStore
	feed      ProgressFeed
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

func NewProgressService(estimates EstimateStore, usage UsageStore, feed ProgressFeed, logger *logrus.Logger, m *metrics.Metrics) *ProgressService {
	return &ProgressService{
		estimates: estimates,
		usage:     usage,
		feed:      feed,
		logger:    logger,
		metrics:   m,
	}
}

// Record appends an operation reported by the workflow engine. A failed
// operation returns the estimate's usage unit; a completed one finishes the
// estimate with its link.
func (s *ProgressService) Record(ctx context.Context, req models.ProgressRequest) (*models.Operation, error) {
	if req.UID == "" || req.ExecutionID == "" || req.Operation == nil {
		return nil, ErrInvalidProgress
	}
	op := req.Operation.Normalize()
	if err := op.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgress, err)
	}

	stored, err := s.estimates.AppendOperation(ctx, req.UID, req.ExecutionID, op)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"uid": req.UID, "execution_id": req.ExecutionID})

	switch {
	case op.Failed():
		count, refunded, err := s.estimates.RefundEstimate(ctx, req.UID, req.ExecutionID)
		if err != nil {
			return nil, err
		}
		if refunded {
			s.metrics.Refund()
			log.WithField("count", count).Info("usage refunded for failed estimate")
		}
	case op.Completed():
		link := req.SharedLink
		if link == "" {
			link = op.Step
		}
		if err := s.estimates.FinishEstimate(ctx, req.UID, req.ExecutionID, link); err != nil {
			return nil, err
		}
		log.Info("estimate finished")
	}

	return stored, nil
}

// BuildView maps the latest operation onto what the progress page shows.
func BuildView(executionID string, op models.Operation, usage *models.UsageRecord) models.ProgressView {
	view := models.ProgressView{
		ExecutionID: executionID,
		Step:        op.Step,
		Status:      op.Status,
		Progress:    op.Progress,
	}
	switch {
	case op.Failed():
		view.Failed = true
		view.NotCharged = usage == nil || !usage.Paid
	case op.Completed():
		view.Link = op.Step
		view.Finished = true
	}
	return view
}

func (s *ProgressService) view(ctx context.Context, uid, executionID string, op models.Operation) (models.ProgressView, error) {
	var usage *models.UsageRecord
	if op.Failed() {
		var err error
		usage, err = s.usage.GetUsage(ctx, uid)
		if err != nil {
			return models.ProgressView{}, err
		}
	}
	return BuildView(executionID, op, usage), nil
}

// Current renders the latest operation of an estimate.
func (s *ProgressService) Current(ctx context.Context, uid, executionID string) (*models.ProgressView, error) {
	if _, err := s.estimates.GetEstimate(ctx, uid, executionID); err != nil {
		return nil, err
	}
	op, err := s.estimates.LatestOperation(ctx, uid, executionID)
	if err != nil {
		return nil, err
	}
	view, err := s.view(ctx, uid, executionID, *op)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Watch emits the current view and then every new one until a terminal view,
// ctx cancellation or emit returning false.
func (s *ProgressService) Watch(ctx context.Context, uid, executionID string, emit func(models.ProgressView) bool) error {
	if _, err := s.estimates.GetEstimate(ctx, uid, executionID); err != nil {
		return err
	}

	updates, cancel := s.feed.Subscribe(uid, executionID)
	defer cancel()

	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()

	lastKey := ""
	latest, err := s.estimates.LatestOperation(ctx, uid, executionID)
	switch {
	case err == nil:
		view, err := s.view(ctx, uid, executionID, *latest)
		if err != nil {
			return err
		}
		if !emit(view) || view.Terminal() {
			return nil
		}
		lastKey = latest.Key
	case !errors.Is(err, models.ErrNotFound):
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-updates:
			if op.Key != "" && op.Key == lastKey {
				continue
			}
			lastKey = op.Key
			if op.Partial {
				latest, err := s.estimates.LatestOperation(ctx, uid, executionID)
				if err != nil {
					return err
				}
				op = *latest
			}
			view, err := s.view(ctx, uid, executionID, op)
			if err != nil {
				return err
			}
			if !emit(view) || view.Terminal() {
				return nil
			}
		}
	}
}
