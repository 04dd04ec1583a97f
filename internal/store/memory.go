package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shipportal/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]model.Session        // id -> session
	wizards  map[string]model.WizardState    // sessionId -> wizard state
	subs     map[string][]model.Subscription // customer -> subscriptions
	subLog   map[string][]model.Submission   // customer -> submissions, oldest first
	// Webhooks queue state
	deliveries       map[string]*memDelivery // id -> delivery state
	deliveriesByCust map[string][]string     // customer -> delivery ids
	deliveryOrder    []string                // enqueue order
	dlq              []map[string]any        // dead-lettered deliveries
}

func NewMemory() *Memory {
	return &Memory{
		sessions:         map[string]model.Session{},
		wizards:          map[string]model.WizardState{},
		subs:             map[string][]model.Subscription{},
		subLog:           map[string][]model.Submission{},
		deliveries:       map[string]*memDelivery{},
		deliveriesByCust: map[string][]string{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

// Sessions

func (m *Memory) SaveSession(ctx context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) TouchSession(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LastSeen = at
	m.sessions[id] = s
	return nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *Memory) ExpireSessions(ctx context.Context, before time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if s.LastSeen.Before(before) {
			ids = append(ids, id)
			delete(m.sessions, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Wizard drafts. Stored and returned as deep copies so callers cannot alias.

func (m *Memory) GetWizard(ctx context.Context, sessionID string) (model.WizardState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.wizards[sessionID]
	if !ok {
		return model.WizardState{}, ErrNotFound
	}
	return cloneWizard(st), nil
}

func (m *Memory) SaveWizard(ctx context.Context, st model.WizardState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wizards[st.SessionID] = cloneWizard(st)
	return nil
}

func (m *Memory) DeleteWizard(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.wizards, sessionID)
	return nil
}

func cloneWizard(st model.WizardState) model.WizardState {
	if st.Draft.Commodity != nil {
		st.Draft.Commodity = append([]model.Field(nil), st.Draft.Commodity...)
	}
	if st.Draft.Charges != nil {
		c := *st.Draft.Charges
		st.Draft.Charges = &c
	}
	return st
}

// Submission log

func (m *Memory) RecordSubmission(ctx context.Context, sub model.Submission) (model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	m.subLog[sub.CustomerID] = append(m.subLog[sub.CustomerID], sub)
	return sub, nil
}

// ListSubmissions returns newest first.
func (m *Memory) ListSubmissions(ctx context.Context, customerID string, limit int) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	list := m.subLog[customerID]
	out := []model.Submission{}
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, customerID string, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), CustomerID: customerID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[customerID] = append(m.subs[customerID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, customerID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[customerID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, customerID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[customerID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, customerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[customerID]
	out := make([]model.Subscription, 0, len(arr))
	found := false
	for _, s := range arr {
		if s.ID == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		return ErrNotFound
	}
	m.subs[customerID] = out
	return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, customerID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, CustomerID: customerID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveriesByCust[customerID] = append(m.deliveriesByCust[customerID], id)
	m.deliveryOrder = append(m.deliveryOrder, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliveryOrder {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = "retry"
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(1 * time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	d.LastError = lastError
	m.dlq = append(m.dlq, map[string]any{"id": id, "customerId": d.CustomerID, "eventType": d.EventType, "lastError": lastError, "responseCode": responseCode, "latencyMs": latencyMs})
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, customerID, status string, limit int) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []map[string]any{}
	for _, id := range m.deliveriesByCust[customerID] {
		d := m.deliveries[id]
		if d == nil || (status != "" && d.Status != status) {
			continue
		}
		item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
		if !d.NextAttemptAt.IsZero() {
			item["nextAttemptAt"] = d.NextAttemptAt
		}
		if d.LastError != "" {
			item["lastError"] = d.LastError
		}
		out = append(out, item)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, customerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil || d.CustomerID != customerID {
		return ErrNotFound
	}
	d.Status = "pending"
	d.NextAttemptAt = time.Now()
	return nil
}

// DLQ returns dead-lettered deliveries, oldest first.
func (m *Memory) DLQ() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.dlq...)
}
