package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/metrics"
	"ai-estimate-backend/internal/models"
)

const dedupeTTL = 24 * time.Hour

type SubscriptionReader interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type UsageStore interface {
	ApplySubscriptionPatch(ctx context.Context, patch models.SubscriptionPatch) error
	ListLapsedSubscriptions(ctx context.Context, before time.Time) ([]models.UsageRecord, error)
}

type Deduper interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Reconciler applies payment events to usage records.
type Reconciler struct {
	provider SubscriptionReader
	store    UsageStore
	dedupe   Deduper
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	backoff  Backoff
	now      func() time.Time
}

func NewReconciler(provider SubscriptionReader, store UsageStore, dedupe Deduper, logger *logrus.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		provider: provider,
		store:    store,
		dedupe:   dedupe,
		logger:   logger,
		metrics:  m,
		backoff:  DefaultBackoff,
		now:      time.Now,
	}
}

// WithBackoff overrides the retry schedule for subscription reads.
func (r *Reconciler) WithBackoff(b Backoff) *Reconciler {
	r.backoff = b
	return r
}

// WithClock overrides the time source used for updatedAt.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Handle processes one event. Errors are for logging only; the webhook is
// acknowledged regardless. An event id is remembered only once its patch is
// applied, so a redelivery racing a failing attempt is processed again.
// Patches carry absolute state, so applying one twice is harmless.
func (r *Reconciler) Handle(ctx context.Context, event stripe.Event) error {
	eventType := string(event.Type)
	log := r.logger.WithFields(logrus.Fields{"event_type": eventType, "event_id": event.ID})

	dedupe := event.ID != "" && r.dedupe != nil
	key := "stripe:event:" + event.ID

	if dedupe {
		seen, err := r.dedupe.Exists(ctx, key)
		if err != nil {
			log.WithError(err).Warn("event de-duplication unavailable")
		}
		if seen {
			log.Info("duplicate event ignored")
			r.metrics.WebhookEvent(eventType, "duplicate")
			return nil
		}
	}

	if err := r.handle(ctx, event, log); err != nil {
		r.metrics.WebhookEvent(eventType, "error")
		return err
	}

	if dedupe {
		if err := r.dedupe.Set(ctx, key, "1", dedupeTTL); err != nil {
			log.WithError(err).Warn("failed to remember processed event")
		}
	}
	return nil
}

func (r *Reconciler) handle(ctx context.Context, event stripe.Event, log *logrus.Entry) error {
	decoded, err := Decode(event)
	if err != nil {
		return err
	}

	patch, err := r.Resolve(ctx, decoded)
	if err != nil {
		return err
	}
	if patch == nil {
		r.metrics.WebhookEvent(string(event.Type), "ignored")
		return nil
	}

	if err := r.store.ApplySubscriptionPatch(ctx, *patch); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"uid": patch.UID, "status": patch.Status, "paid": patch.Paid}).Info("usage updated from payment event")
	r.metrics.WebhookEvent(string(event.Type), "applied")
	return nil
}

// Resolve turns a decoded event into a usage patch. A nil patch means the
// event is acknowledged without a write.
func (r *Reconciler) Resolve(ctx context.Context, event Event) (*models.SubscriptionPatch, error) {
	switch ev := event.(type) {
	case CheckoutCompleted:
		if ev.UID == "" {
			return nil, nil
		}
		if ev.SubscriptionID == "" {
			patch := PatchFromCheckout(ev.UID, r.now())
			return &patch, nil
		}
		sub, err := r.fetchSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return nil, err
		}
		patch := PatchFromSubscription(ev.UID, sub, r.now())
		return &patch, nil

	case SubscriptionChanged:
		uid := SubscriptionUID(ev.Subscription)
		if uid == "" {
			return nil, nil
		}
		patch := PatchFromSubscription(uid, ev.Subscription, r.now())
		return &patch, nil

	case InvoiceSettled:
		if ev.SubscriptionID == "" {
			return nil, nil
		}
		sub, err := r.fetchSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return nil, err
		}
		uid := SubscriptionUID(sub)
		if uid == "" {
			return nil, nil
		}
		patch := PatchFromSubscription(uid, sub, r.now())
		return &patch, nil

	case Unhandled:
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported event %T", event)
	}
}

func (r *Reconciler) fetchSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	var sub *stripe.Subscription
	err := r.backoff.RetryWithBackoff(ctx, func() error {
		var err error
		sub, err = r.provider.GetSubscription(ctx, subscriptionID)
		return err
	}, len(r.backoff)+1)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}

// Sweep re-reads paid subscriptions whose period has ended, covering missed
// renewal or cancellation events.
func (r *Reconciler) Sweep(ctx context.Context) error {
	lapsed, err := r.store.ListLapsedSubscriptions(ctx, r.now())
	if err != nil {
		return err
	}

	for _, usage := range lapsed {
		if usage.SubscriptionID == nil {
			continue
		}
		log := r.logger.WithFields(logrus.Fields{"uid": usage.UID, "subscription_id": *usage.SubscriptionID})

		sub, err := r.fetchSubscription(ctx, *usage.SubscriptionID)
		if err != nil {
			log.WithError(err).Warn("sweep could not read subscription")
			r.metrics.Reconciled("error")
			continue
		}

		patch := PatchFromSubscription(usage.UID, sub, r.now())
		if err := r.store.ApplySubscriptionPatch(ctx, patch); err != nil {
			log.WithError(err).Error("sweep could not update usage")
			r.metrics.Reconciled("error")
			continue
		}
		r.metrics.Reconciled(patch.Status)
	}
	return nil
}
