package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/models"
)

// ProgressChannel is the NOTIFY channel fed by the operations insert trigger.
const ProgressChannel = "estimate_operations"

// RealtimeClient fans operation inserts out to subscribers of one estimate.
// Each subscriber holds at most one pending operation; a newer one replaces it.
type RealtimeClient struct {
	logger *logrus.Logger

	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan models.Operation
}

func NewRealtimeClient(logger *logrus.Logger) *RealtimeClient {
	return &RealtimeClient{
		logger: logger,
		subs:   make(map[string]map[int]chan models.Operation),
	}
}

func estimateChannel(uid, executionID string) string {
	return fmt.Sprintf("estimate:%s:%s", uid, executionID)
}

// Subscribe returns a channel of operations for the estimate and a cancel func.
func (r *RealtimeClient) Subscribe(uid, executionID string) (<-chan models.Operation, func()) {
	channel := estimateChannel(uid, executionID)
	ch := make(chan models.Operation, 1)

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	if r.subs[channel] == nil {
		r.subs[channel] = make(map[int]chan models.Operation)
	}
	r.subs[channel][id] = ch
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs[channel], id)
			if len(r.subs[channel]) == 0 {
				delete(r.subs, channel)
			}
			r.mu.Unlock()
		})
	}
	return ch, cancel
}

func (r *RealtimeClient) Publish(uid, executionID string, op models.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.subs[estimateChannel(uid, executionID)] {
		select {
		case ch <- op:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- op
		}
	}
}

func (r *RealtimeClient) Subscribers(uid, executionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[estimateChannel(uid, executionID)])
}

type operationNotification struct {
	Key         string                 `json:"key"`
	UID         string                 `json:"uid"`
	ExecutionID string                 `json:"executionId"`
	Step        string                 `json:"step"`
	Status      models.OperationStatus `json:"status"`
	Progress    int                    `json:"progress"`
	CreatedAt   time.Time              `json:"createdAt"`
	Partial     bool                   `json:"partial"`
}

// HandleNotification decodes a trigger payload and publishes it.
func (r *RealtimeClient) HandleNotification(payload string) error {
	var n operationNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}
	if n.UID == "" || n.ExecutionID == "" {
		return fmt.Errorf("notification without estimate reference")
	}

	r.Publish(n.UID, n.ExecutionID, models.Operation{
		Key:       n.Key,
		Step:      n.Step,
		Status:    n.Status,
		Progress:  n.Progress,
		CreatedAt: n.CreatedAt,
		Partial:   n.Partial,
	})
	return nil
}

// Listen relays Postgres notifications until ctx is cancelled.
func (r *RealtimeClient) Listen(ctx context.Context, connectionString string) error {
	listener := pq.NewListener(connectionString, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.WithError(err).Warn("progress listener event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(ProgressChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ProgressChannel, err)
	}
	r.logger.Infof("Listening for progress notifications on %s", ProgressChannel)

	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; missed operations are read from the table by subscribers
			if n == nil {
				continue
			}
			if err := r.HandleNotification(n.Extra); err != nil {
				r.logger.WithError(err).Warn("dropping progress notification")
			}
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				r.logger.WithError(err).Warn("progress listener ping failed")
			}
		}
	}
}
