// Package fakes holds in-memory stand-ins for the stores and providers so
// services and handlers can be exercised without Postgres or network access.
package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v79"

	"ai-estimate-backend/internal/billing"
	"ai-estimate-backend/internal/models"
	"ai-estimate-backend/internal/workflow"
)

func estimateKey(uid, executionID string) string {
	return uid + "/" + executionID
}

// Store implements the profile, usage and estimate stores.
type Store struct {
	mu        sync.Mutex
	profiles  map[string]models.Profile
	usage     map[string]models.UsageRecord
	customers map[string]string
	estimates map[string]*models.Estimate
	ops       map[string][]models.Operation
	debug     map[string]int
	nextKey   int

	// OnAppend is called after every appended operation.
	OnAppend func(uid, executionID string, op models.Operation)
	// AppendErr, when set, fails AppendOperation.
	AppendErr error
}

func NewStore() *Store {
	return &Store{
		profiles:  map[string]models.Profile{},
		usage:     map[string]models.UsageRecord{},
		customers: map[string]string{},
		estimates: map[string]*models.Estimate{},
		ops:       map[string][]models.Operation{},
		debug:     map[string]int{},
	}
}

// SetUsage seeds the usage row of a user.
func (s *Store) SetUsage(u models.UsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[u.UID] = u
}

// Usage returns a copy of the usage row.
func (s *Store) Usage(uid string) models.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usage[uid]
	u.UID = uid
	return u
}

// Operations returns the operations of an estimate in append order.
func (s *Store) Operations(uid, executionID string) []models.Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Operation(nil), s.ops[estimateKey(uid, executionID)]...)
}

// EstimateCount is the number of estimate rows of uid.
func (s *Store) EstimateCount(uid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.estimates {
		if e.UID == uid {
			n++
		}
	}
	return n
}

func (s *Store) CreateProfile(ctx context.Context, uid, name, role string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Profile{UID: uid, Name: name, Role: role, CreatedAt: time.Now()}
	if existing, ok := s.profiles[uid]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	s.profiles[uid] = p
	if _, ok := s.usage[uid]; !ok {
		s.usage[uid] = models.UsageRecord{UID: uid}
	}
	return &p, nil
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, uid string, name, role *string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, models.ErrNotFound
	}
	if name != nil {
		p.Name = *name
	}
	if role != nil {
		p.Role = *role
	}
	s.profiles[uid] = p
	return &p, nil
}

func (s *Store) DeleteProfile(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, uid)
	delete(s.usage, uid)
	for k, e := range s.estimates {
		if e.UID == uid {
			delete(s.estimates, k)
			delete(s.ops, k)
		}
	}
	return nil
}

func (s *Store) GetUsage(ctx context.Context, uid string) (*models.UsageRecord, error) {
	u := s.Usage(uid)
	return &u, nil
}

func (s *Store) ApplySubscriptionPatch(ctx context.Context, patch models.SubscriptionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usage[patch.UID]
	u.UID = patch.UID
	u.Paid = patch.Paid
	u.Status = patch.Status
	u.SubscriptionID = patch.SubscriptionID
	u.CurrentPeriodEnd = patch.CurrentPeriodEnd
	u.UpdatedAt = patch.UpdatedAt
	if patch.AutoRenew != nil {
		u.AutoRenew = *patch.AutoRenew
	}
	s.usage[patch.UID] = u
	return nil
}

func (s *Store) ListLapsedSubscriptions(ctx context.Context, before time.Time) ([]models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UsageRecord
	for _, u := range s.usage {
		if u.Paid && u.SubscriptionID != nil && u.CurrentPeriodEnd != nil && u.CurrentPeriodEnd.Before(before) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) SetAutoRenew(ctx context.Context, uid string, autoRenew bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usage[uid]
	u.UID = uid
	u.AutoRenew = autoRenew
	s.usage[uid] = u
	return nil
}

func (s *Store) GetStripeCustomerID(ctx context.Context, uid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers[uid], nil
}

func (s *Store) SetStripeCustomerID(ctx context.Context, uid, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[uid] = customerID
	return nil
}

func (s *Store) CreateEstimate(ctx context.Context, e *models.Estimate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := estimateKey(e.UID, e.ExecutionID)
	existing, ok := s.estimates[k]
	if !ok {
		existing = &models.Estimate{UID: e.UID, ExecutionID: e.ExecutionID, CreatedAt: time.Now()}
		s.estimates[k] = existing
	}
	existing.ProjectName = e.ProjectName
	existing.Notes = e.Notes
	if e.SharedLink != nil {
		existing.SharedLink = e.SharedLink
	}
	return nil
}

func (s *Store) GetEstimate(ctx context.Context, uid, executionID string) (*models.Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.estimates[estimateKey(uid, executionID)]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (s *Store) ListFinishedEstimates(ctx context.Context, uid string) ([]models.Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Estimate
	for _, e := range s.estimates {
		if e.UID == uid && e.IsFinished {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ExecutionID > out[j].ExecutionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) FinishEstimate(ctx context.Context, uid, executionID, sharedLink string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.estimates[estimateKey(uid, executionID)]
	if !ok {
		return models.ErrNotFound
	}
	e.IsFinished = true
	if sharedLink != "" {
		link := sharedLink
		e.SharedLink = &link
	}
	return nil
}

func (s *Store) ChargeEstimate(ctx context.Context, uid, executionID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usage[uid]
	u.UID = uid
	e, ok := s.estimates[estimateKey(uid, executionID)]
	if !ok || e.Charged || e.Refunded {
		s.usage[uid] = u
		return u.Count, false, nil
	}
	e.Charged = true
	u.Count++
	s.usage[uid] = u
	return u.Count, true, nil
}

func (s *Store) RefundEstimate(ctx context.Context, uid, executionID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.usage[uid]
	u.UID = uid
	e, ok := s.estimates[estimateKey(uid, executionID)]
	if !ok || e.Refunded {
		return u.Count, false, nil
	}
	e.Refunded = true
	if !e.Charged {
		return u.Count, false, nil
	}
	if u.Count > 0 {
		u.Count--
	}
	s.usage[uid] = u
	return u.Count, true, nil
}

func (s *Store) AppendOperation(ctx context.Context, uid, executionID string, op models.Operation) (*models.Operation, error) {
	s.mu.Lock()
	if s.AppendErr != nil {
		s.mu.Unlock()
		return nil, s.AppendErr
	}
	k := estimateKey(uid, executionID)
	if _, ok := s.estimates[k]; !ok {
		s.estimates[k] = &models.Estimate{UID: uid, ExecutionID: executionID, CreatedAt: time.Now()}
	}
	s.nextKey++
	op.Key = strconv.Itoa(s.nextKey)
	op.CreatedAt = time.Now()
	s.ops[k] = append(s.ops[k], op)
	hook := s.OnAppend
	s.mu.Unlock()

	if hook != nil {
		hook(uid, executionID, op)
	}
	return &op, nil
}

func (s *Store) ListOperations(ctx context.Context, uid, executionID string) ([]models.Operation, error) {
	return s.Operations(uid, executionID), nil
}

func (s *Store) LatestOperation(ctx context.Context, uid, executionID string) (*models.Operation, error) {
	ops := s.Operations(uid, executionID)
	if len(ops) == 0 {
		return nil, models.ErrNotFound
	}
	op := ops[len(ops)-1]
	return &op, nil
}

func (s *Store) WriteDebug(ctx context.Context, key string, val int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug[key] = val
	return val, nil
}

// Archive keeps uploaded files and drafts in memory.
type Archive struct {
	mu        sync.Mutex
	Files     map[string][]byte
	Drafts    map[string]models.Draft
	Deleted   []string
	UploadErr error
}

func NewArchive() *Archive {
	return &Archive{Files: map[string][]byte{}, Drafts: map[string]models.Draft{}}
}

func (a *Archive) UploadFile(uid, executionID, filename, contentType string, data []byte) (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.UploadErr != nil {
		return "", "", a.UploadErr
	}
	p := fmt.Sprintf("users/%s/estimates/%s/%s", uid, executionID, filename)
	a.Files[p] = data
	return p, "https://storage.example.com/" + p, nil
}

func (a *Archive) SaveDraft(uid string, draft models.Draft) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Drafts[uid] = draft
	return nil
}

func (a *Archive) LoadDraft(uid string) (*models.Draft, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.Drafts[uid]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &d, nil
}

func (a *Archive) DeleteUserFiles(uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Deleted = append(a.Deleted, uid)
	return nil
}

// Workflow records submissions and answers with Result or Err.
type Workflow struct {
	mu          sync.Mutex
	Submissions []workflow.Submission
	Result      workflow.Result
	Err         error
}

func (w *Workflow) Submit(ctx context.Context, s workflow.Submission) (*workflow.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Submissions = append(w.Submissions, s)
	if w.Err != nil {
		return nil, w.Err
	}
	result := w.Result
	if result.StatusCode == 0 {
		result.StatusCode = 200
	}
	return &result, nil
}

// Calls is the number of submissions received.
func (w *Workflow) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Submissions)
}

// Provider is an in-memory payment provider.
type Provider struct {
	mu               sync.Mutex
	Customers        map[string]string
	CustomerMetadata map[string]map[string]string
	Subscriptions    map[string]*stripe.Subscription
	Sessions         []billing.CheckoutRequest
	CheckoutErr      error
	nextID           int
}

var _ billing.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{
		Customers:        map[string]string{},
		CustomerMetadata: map[string]map[string]string{},
		Subscriptions:    map[string]*stripe.Subscription{},
	}
}

func (p *Provider) FindCustomerByUID(ctx context.Context, uid string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Customers[uid], nil
}

func (p *Provider) CreateCustomer(ctx context.Context, uid string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("cus_%d", p.nextID)
	p.Customers[uid] = id
	p.CustomerMetadata[id] = map[string]string{"uid": uid}
	return id, nil
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*stripe.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CheckoutErr != nil {
		return nil, p.CheckoutErr
	}
	p.nextID++
	p.Sessions = append(p.Sessions, req)
	return &stripe.CheckoutSession{ID: fmt.Sprintf("cs_test_%d", p.nextID)}, nil
}

func (p *Provider) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.Subscriptions[subscriptionID]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Msg: "No such subscription: " + subscriptionID}
	}
	out := *sub
	return &out, nil
}

func (p *Provider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*stripe.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.Subscriptions[subscriptionID]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Msg: "No such subscription: " + subscriptionID}
	}
	sub.CancelAtPeriodEnd = cancel
	out := *sub
	return &out, nil
}

func (p *Provider) AccountID(ctx context.Context) (string, error) {
	return "acct_test", nil
}

func (p *Provider) SamplePrice(ctx context.Context) (string, error) {
	return "price_test", nil
}

// AccountAdmin records identity provider calls.
type AccountAdmin struct {
	Disabled   []string
	Revoked    []string
	DisableErr error
}

func (a *AccountAdmin) DisableUser(uid string) error {
	if a.DisableErr != nil {
		return a.DisableErr
	}
	a.Disabled = append(a.Disabled, uid)
	return nil
}

func (a *AccountAdmin) RevokeSessions(accessToken string) error {
	a.Revoked = append(a.Revoked, accessToken)
	return nil
}
