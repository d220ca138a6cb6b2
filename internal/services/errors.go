package services

import "errors"

var (
	ErrQuotaExceeded        = errors.New("free limit reached")
	ErrInvalidSubmission    = errors.New("invalid submission")
	ErrWorkflowUnavailable  = errors.New("workflow engine rejected the submission")
	ErrInvalidProgress      = errors.New("uid, executionId and operation are required")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidProfile       = errors.New("invalid profile")
	ErrNoSubscription       = errors.New("no subscription")
	ErrSubscriptionMismatch = errors.New("subscription does not belong to user")
	ErrSubscriptionEnded    = errors.New("subscription already ended")
)
