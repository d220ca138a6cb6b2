package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/models"
)

// Event is the closed set of payment events the reconciler acts on.
type Event interface {
	isEvent()
}

// CheckoutCompleted is a finished checkout session.
type CheckoutCompleted struct {
	UID            string
	SubscriptionID string
}

// SubscriptionChanged carries the full subscription of an updated or deleted event.
type SubscriptionChanged struct {
	Subscription *stripe.Subscription
}

// InvoiceSettled references the subscription of a paid or failed invoice.
type InvoiceSettled struct {
	SubscriptionID string
	Succeeded      bool
}

// Unhandled is any other event type; it is acknowledged and ignored.
type Unhandled struct {
	Type string
}

func (CheckoutCompleted) isEvent()   {}
func (SubscriptionChanged) isEvent() {}
func (InvoiceSettled) isEvent()      {}
func (Unhandled) isEvent()           {}

// Decode maps a raw payment event onto one of the Event variants.
func Decode(event stripe.Event) (Event, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.Type)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("invalid checkout session payload: %w", err)
		}
		out := CheckoutCompleted{UID: sess.Metadata["uid"]}
		if out.UID == "" {
			out.UID = sess.ClientReferenceID
		}
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}
		return out, nil

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("invalid subscription payload: %w", err)
		}
		return SubscriptionChanged{Subscription: &sub}, nil

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("invalid invoice payload: %w", err)
		}
		out := InvoiceSettled{Succeeded: event.Type == "invoice.payment_succeeded"}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		return out, nil

	default:
		return Unhandled{Type: string(event.Type)}, nil
	}
}

// PatchFromSubscription derives the usage fields from a subscription.
func PatchFromSubscription(uid string, sub *stripe.Subscription, now time.Time) models.SubscriptionPatch {
	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}
	status := string(sub.Status)
	patch := models.NewSubscriptionPatch(uid, sub.ID, status, periodEnd, now)

	autoRenew := !sub.CancelAtPeriodEnd && status != models.SubscriptionCanceled
	patch.AutoRenew = &autoRenew
	return patch
}

// PatchFromCheckout is used when a completed checkout carries no subscription.
func PatchFromCheckout(uid string, now time.Time) models.SubscriptionPatch {
	return models.NewSubscriptionPatch(uid, "", models.SubscriptionActive, nil, now)
}

// SubscriptionUID returns the owner recorded on the subscription.
func SubscriptionUID(sub *stripe.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.Metadata["uid"]
}
