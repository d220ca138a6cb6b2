package models

import (
	"fmt"
	"time"
)

type OperationStatus string

const (
	OperationPending    OperationStatus = "pending"
	OperationInProgress OperationStatus = "in_progress"
	OperationDone       OperationStatus = "done"
	OperationFailed     OperationStatus = "failed"
)

// StepFailed is the step marker some workflow branches emit instead of a failed status.
const StepFailed = "step_failed"

type Estimate struct {
	UID         string    `json:"-"`
	ExecutionID string    `json:"id"`
	ProjectName string    `json:"projectName"`
	Notes       string    `json:"notes"`
	SharedLink  *string   `json:"sharedLink"`
	CreatedAt   time.Time `json:"createdAt"`
	IsFinished  bool      `json:"isFinished"`
	Charged     bool      `json:"-"`
	Refunded    bool      `json:"-"`
}

type Operation struct {
	Key       string          `json:"key,omitempty"`
	Step      string          `json:"step"`
	Status    OperationStatus `json:"status"`
	Progress  int             `json:"progress"`
	CreatedAt time.Time       `json:"createdAt,omitempty"`
	// Partial is set on notifications that left the step out; the row has it.
	Partial bool `json:"-"`
}

// Normalize fills in what the engine may leave out. A step_failed entry is
// failed whatever status it reports; a missing status follows the progress.
func (o Operation) Normalize() Operation {
	switch {
	case o.Step == StepFailed:
		o.Status = OperationFailed
	case o.Status == "" && o.Progress >= 100:
		o.Status = OperationDone
	case o.Status == "" && o.Progress == 0:
		o.Status = OperationPending
	case o.Status == "":
		o.Status = OperationInProgress
	}
	return o
}

func (o Operation) Validate() error {
	switch o.Status {
	case OperationPending, OperationInProgress, OperationDone, OperationFailed:
	default:
		return fmt.Errorf("unknown operation status %q", o.Status)
	}
	if o.Progress < 0 || o.Progress > 100 {
		return fmt.Errorf("progress %d out of range 0-100", o.Progress)
	}
	return nil
}

func (o Operation) Failed() bool {
	return o.Status == OperationFailed || o.Step == StepFailed
}

// Completed reports whether the step payload carries the deliverable link.
func (o Operation) Completed() bool {
	return !o.Failed() && o.Progress == 100
}

// ProgressView is what the progress page renders for the latest operation.
type ProgressView struct {
	ExecutionID string          `json:"executionId"`
	Step        string          `json:"step"`
	Status      OperationStatus `json:"status"`
	Progress    int             `json:"progress"`
	Link        string          `json:"link,omitempty"`
	Failed      bool            `json:"failed"`
	NotCharged  bool            `json:"notCharged,omitempty"`
	Finished    bool            `json:"finished"`
}

// Terminal views end a progress subscription.
func (v ProgressView) Terminal() bool {
	return v.Failed || v.Finished
}

type DraftFile struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
	URL         string `json:"url"`
}

// Draft is the last submission kept in storage so the form can be restored.
type Draft struct {
	ExecutionID string      `json:"executionId"`
	ProjectName string      `json:"projectName"`
	Notes       string      `json:"notes"`
	Files       []DraftFile `json:"files"`
	SavedAt     time.Time   `json:"savedAt"`
}
