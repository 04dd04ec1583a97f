package store

import (
	"context"
	"errors"
	"time"

	"shipportal/internal/model"
)

// SessionStore persists portal sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	// DeleteSession returns ErrNotFound when no session had that id.
	DeleteSession(ctx context.Context, id string) error
	// ExpireSessions deletes sessions idle since before and returns their IDs.
	ExpireSessions(ctx context.Context, before time.Time) ([]string, error)
}

// DraftStore persists wizard state, one per session.
type DraftStore interface {
	GetWizard(ctx context.Context, sessionID string) (model.WizardState, error)
	SaveWizard(ctx context.Context, st model.WizardState) error
	DeleteWizard(ctx context.Context, sessionID string) error
}

// SubmissionLog records every submit attempt.
type SubmissionLog interface {
	RecordSubmission(ctx context.Context, sub model.Submission) (model.Submission, error)
	ListSubmissions(ctx context.Context, customerID string, limit int) ([]model.Submission, error)
}

// WebhookStore holds subscriptions and the delivery queue.
type WebhookStore interface {
	CreateSubscription(ctx context.Context, customerID string, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, customerID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, customerID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, customerID, id string) error

	EnqueueWebhook(ctx context.Context, customerID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, customerID, status string, limit int) ([]map[string]any, error)
	RetryWebhookDelivery(ctx context.Context, customerID, id string) error
}

// Store is the persistence interface used by the API server.
type Store interface {
	SessionStore
	DraftStore
	SubmissionLog
	WebhookStore
	Ping(ctx context.Context) error
	Close() error
}

type WebhookDelivery struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

var ErrNotFound = errors.New("not found")
