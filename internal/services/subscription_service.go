package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/billing"
	"ai-estimate-backend/internal/config"
	"ai-estimate-backend/internal/models"
)

type SubscriptionService struct {
	provider billing.Provider
	usage    UsageStore
	cfg      *config.Config
	logger   *logrus.Logger
}

func NewSubscriptionService(provider billing.Provider, usage UsageStore, cfg *config.Config, logger *logrus.Logger) *SubscriptionService {
	return &SubscriptionService{
		provider: provider,
		usage:    usage,
		cfg:      cfg,
		logger:   logger,
	}
}

// EnsureCustomer finds the payment customer of uid or creates one. The stored
// id wins, then a metadata search, then creation; the result is persisted.
func (s *SubscriptionService) EnsureCustomer(ctx context.Context, uid string) (string, error) {
	customerID, err := s.usage.GetStripeCustomerID(ctx, uid)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	customerID, err = s.provider.FindCustomerByUID(ctx, uid)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, uid)
		if err != nil {
			return "", err
		}
		s.logger.WithFields(logrus.Fields{"uid": uid, "customer_id": customerID}).Info("payment customer created")
	}

	if err := s.usage.SetStripeCustomerID(ctx, uid, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *SubscriptionService) CreateCheckoutSession(ctx context.Context, uid string) (*stripe.CheckoutSession, error) {
	customerID, err := s.EnsureCustomer(ctx, uid)
	if err != nil {
		return nil, err
	}

	return s.provider.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		UID:        uid,
		CustomerID: customerID,
		PriceID:    s.cfg.StripePriceID,
		SuccessURL: s.cfg.FrontendURL + "/?subscribed=true",
		CancelURL:  s.cfg.FrontendURL + "/?subscribed=false",
	})
}

// ownedSubscription resolves the subscription id (request or stored) and
// checks it belongs to uid.
func (s *SubscriptionService) ownedSubscription(ctx context.Context, uid, subscriptionID string) (*stripe.Subscription, error) {
	if subscriptionID == "" {
		usage, err := s.usage.GetUsage(ctx, uid)
		if err != nil {
			return nil, err
		}
		if usage.SubscriptionID == nil || *usage.SubscriptionID == "" {
			return nil, ErrNoSubscription
		}
		subscriptionID = *usage.SubscriptionID
	}

	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve subscription: %w", err)
	}
	if billing.SubscriptionUID(sub) != uid {
		return nil, ErrSubscriptionMismatch
	}
	return sub, nil
}

// Cancel turns off auto renewal; the subscription stays paid until period end.
func (s *SubscriptionService) Cancel(ctx context.Context, uid, subscriptionID string) (*models.UsageRecord, error) {
	return s.setAutoRenew(ctx, uid, subscriptionID, false)
}

// Resume turns auto renewal back on for a subscription that has not ended.
func (s *SubscriptionService) Resume(ctx context.Context, uid, subscriptionID string) (*models.UsageRecord, error) {
	return s.setAutoRenew(ctx, uid, subscriptionID, true)
}

func (s *SubscriptionService) setAutoRenew(ctx context.Context, uid, subscriptionID string, autoRenew bool) (*models.UsageRecord, error) {
	sub, err := s.ownedSubscription(ctx, uid, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == stripe.SubscriptionStatusCanceled {
		return nil, ErrSubscriptionEnded
	}

	if _, err := s.provider.SetCancelAtPeriodEnd(ctx, sub.ID, !autoRenew); err != nil {
		return nil, err
	}
	if err := s.usage.SetAutoRenew(ctx, uid, autoRenew); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"uid": uid, "subscription_id": sub.ID, "auto_renew": autoRenew}).Info("subscription renewal changed")
	return s.usage.GetUsage(ctx, uid)
}

func (s *SubscriptionService) Status(ctx context.Context, uid string) (*models.SubscriptionStatusResponse, error) {
	usage, err := s.usage.GetUsage(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &models.SubscriptionStatusResponse{
		UsageRecord: *usage,
		FreeLimit:   s.cfg.FreeLimit,
		Remaining:   Remaining(usage, s.cfg.FreeLimit),
	}, nil
}

func (s *SubscriptionService) AccountID(ctx context.Context) (string, error) {
	return s.provider.AccountID(ctx)
}

func (s *SubscriptionService) SamplePrice(ctx context.Context) (string, error) {
	return s.provider.SamplePrice(ctx)
}
