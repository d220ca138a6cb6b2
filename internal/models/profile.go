package models

import "time"

// Roles offered during onboarding.
var Roles = []string{"designer", "smm", "ba", "pm", "ceo", "cto"}

func IsValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Profile struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscription statuses as reported by the payment provider. An empty status
// means the user never subscribed.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionUnpaid   = "unpaid"
)

// IsPaidStatus is the single definition of "paid".
func IsPaidStatus(status string) bool {
	return status == SubscriptionActive || status == SubscriptionTrialing
}

type UsageRecord struct {
	UID              string     `json:"uid"`
	Count            int        `json:"count"`
	Paid             bool       `json:"paid"`
	Status           string     `json:"status"`
	SubscriptionID   *string    `json:"subscriptionId"`
	AutoRenew        bool       `json:"autoRenew"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	StripeCustomerID *string    `json:"-"`
}

// SubscriptionPatch is the field set the payment webhook is allowed to merge
// into a UsageRecord. Count is never touched by it; AutoRenew only when set.
type SubscriptionPatch struct {
	UID              string
	Paid             bool
	Status           string
	SubscriptionID   *string
	CurrentPeriodEnd *time.Time
	AutoRenew        *bool
	UpdatedAt        time.Time
}

func NewSubscriptionPatch(uid, subscriptionID, status string, currentPeriodEnd *time.Time, now time.Time) SubscriptionPatch {
	patch := SubscriptionPatch{
		UID:              uid,
		Paid:             IsPaidStatus(status),
		Status:           status,
		CurrentPeriodEnd: currentPeriodEnd,
		UpdatedAt:        now,
	}
	if subscriptionID != "" {
		id := subscriptionID
		patch.SubscriptionID = &id
	}
	return patch
}
