package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"ai-estimate-backend/internal/config"
)

// Provider is the part of the payment API the service uses.
type Provider interface {
	FindCustomerByUID(ctx context.Context, uid string) (string, error)
	CreateCustomer(ctx context.Context, uid string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*stripe.Subscription, error)
	AccountID(ctx context.Context) (string, error)
	SamplePrice(ctx context.Context) (string, error)
}

type CheckoutRequest struct {
	UID        string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type StripeProvider struct {
	api         *client.API
	envTag      string
	testClockID string
}

func NewStripeProvider(cfg *config.Config) *StripeProvider {
	return &StripeProvider{
		api:         client.New(cfg.StripeSecretKey, nil),
		envTag:      cfg.StripeEnvTag(),
		testClockID: cfg.StripeTestClockID,
	}
}

// FindCustomerByUID searches customers by metadata uid. Returns "" when none match.
func (p *StripeProvider) FindCustomerByUID(ctx context.Context, uid string) (string, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("metadata['uid']:'%s'", uid),
			Context: ctx,
		},
	}
	params.Limit = stripe.Int64(1)

	iter := p.api.Customers.Search(params)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to search customers: %w", err)
	}
	return "", nil
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, uid string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"uid": uid,
			"env": p.envTag,
		},
	}
	if p.testClockID != "" {
		params.TestClock = stripe.String(p.testClockID)
	}
	params.Context = ctx

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return cust.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(req.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"uid": req.UID},
		},
		ClientReferenceID: stripe.String(req.UID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}
	params.AddMetadata("uid", req.UID)
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess, nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return p.api.Subscriptions.Get(subscriptionID, params)
}

func (p *StripeProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	return sub, nil
}

func (p *StripeProvider) AccountID(ctx context.Context) (string, error) {
	acc, err := p.api.Accounts.Get()
	if err != nil {
		return "", fmt.Errorf("failed to get account: %w", err)
	}
	return acc.ID, nil
}

func (p *StripeProvider) SamplePrice(ctx context.Context) (string, error) {
	params := &stripe.PriceListParams{}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	iter := p.api.Prices.List(params)
	if iter.Next() {
		return iter.Price().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to list prices: %w", err)
	}
	return "", nil
}
