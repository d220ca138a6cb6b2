package models

type HealthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

type CheckoutErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// QuotaExceededResponse tells the client to redirect to checkout instead of submitting.
type QuotaExceededResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"sessionId,omitempty"`
}

type SubmitEstimateResponse struct {
	ExecutionID string  `json:"executionId"`
	Status      string  `json:"status"`
	SharedLink  *string `json:"sharedLink,omitempty"`
	Count       int     `json:"count"`
}

type ProgressAck struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type SubscriptionStatusResponse struct {
	UsageRecord
	FreeLimit int `json:"freeLimit"`
	Remaining int `json:"remaining"`
}

type EstimateListResponse struct {
	Estimates []Estimate `json:"estimates"`
}

type EstimateDetailResponse struct {
	Estimate
	Operations []Operation `json:"operations"`
}

type StripeTestResponse struct {
	Stripe      string `json:"stripe"`
	SamplePrice string `json:"samplePrice,omitempty"`
}

type StripeWhoamiResponse struct {
	Account string `json:"account"`
}

type DebugWriteResponse struct {
	Wrote int `json:"wrote"`
}
