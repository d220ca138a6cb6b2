package services

import "ai-estimate-backend/internal/models"

// QuotaBlocked reports whether a submission must go through checkout first.
func QuotaBlocked(usage *models.UsageRecord, freeLimit int) bool {
	if usage == nil {
		return freeLimit <= 0
	}
	return !usage.Paid && usage.Status != models.SubscriptionActive && usage.Count >= freeLimit
}

// Remaining is the number of free submissions left, ignoring any subscription.
func Remaining(usage *models.UsageRecord, freeLimit int) int {
	if usage == nil {
		return freeLimit
	}
	if left := freeLimit - usage.Count; left > 0 {
		return left
	}
	return 0
}
