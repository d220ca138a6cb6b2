package services

import (
	"context"

	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/workflow"
)

// The interfaces below are satisfied by the supabase package clients.

type UsageStore interface {
	GetUsage(ctx context.Context, uid string) (*models.UsageRecord, error)
	SetAutoRenew(ctx context.Context, uid string, autoRenew bool) error
	GetStripeCustomerID(ctx context.Context, uid string) (string, error)
	SetStripeCustomerID(ctx context.Context, uid, customerID string) error
}

type EstimateStore interface {
	CreateEstimate(ctx context.Context, e *models.Estimate) error
	GetEstimate(ctx context.Context, uid, executionID string) (*models.Estimate, error)
	ListFinishedEstimates(ctx context.Context, uid string) ([]models.Estimate, error)
	FinishEstimate(ctx context.Context, uid, executionID, sharedLink string) error
	ChargeEstimate(ctx context.Context, uid, executionID string) (int, bool, error)
	RefundEstimate(ctx context.Context, uid, executionID string) (int, bool, error)
	AppendOperation(ctx context.Context, uid, executionID string, op models.Operation) (*models.Operation, error)
	ListOperations(ctx context.Context, uid, executionID string) ([]models.Operation, error)
	LatestOperation(ctx context.Context, uid, executionID string) (*models.Operation, error)
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, uid, name, role string) (*models.Profile, error)
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, uid string, name, role *string) (*models.Profile, error)
	DeleteProfile(ctx context.Context, uid string) error
}

// Archive keeps submitted files and the last draft per user.
type Archive interface {
	UploadFile(uid, executionID, filename, contentType string, data []byte) (string, string, error)
	SaveDraft(uid string, draft models.Draft) error
	LoadDraft(uid string) (*models.Draft, error)
	DeleteUserFiles(uid string) error
}

type Workflow interface {
	Submit(ctx context.Context, s workflow.Submission) (*workflow.Result, error)
}

// ProgressFeed delivers operations appended to one estimate.
type ProgressFeed interface {
	Subscribe(uid, executionID string) (<-chan models.Operation, func())
}

type AccountAdmin interface {
	DisableUser(uid string) error
	RevokeSessions(accessToken string) error
}
