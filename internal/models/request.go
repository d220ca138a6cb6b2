package models

type ProgressRequest struct {
	UID         string     `json:"uid"`
	ExecutionID string     `json:"executionId"`
	Operation   *Operation `json:"operation"`
	// SharedLink is optional; a finished operation may carry the link in its step instead.
	SharedLink string `json:"sharedLink,omitempty"`
}

type CreateProfileRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role" binding:"required"`
}

type UpdateProfileRequest struct {
	Name *string `json:"name,omitempty"`
	Role *string `json:"role,omitempty"`
}

type SubscriptionActionRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
