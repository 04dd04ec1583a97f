package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"shipportal/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate applies the embedded migrations in name order. Every statement is
// idempotent so re-running on startup is safe.
func (p *Postgres) Migrate(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := migrationFS.ReadFile("migrations/" + n)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", n, err)
		}
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *Postgres) Close() error                   { return p.db.Close() }

// Sessions

func (p *Postgres) SaveSession(ctx context.Context, s model.Session) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO sessions (id, customer_id, token, name, email, mobile, created_at, last_seen)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET token=EXCLUDED.token, name=EXCLUDED.name, email=EXCLUDED.email, mobile=EXCLUDED.mobile, last_seen=EXCLUDED.last_seen`,
		s.ID, s.Customer.ID, s.Customer.Token, nullIfEmpty(s.Customer.Name), nullIfEmpty(s.Customer.Email), nullIfEmpty(s.Customer.Mobile), s.CreatedAt, s.LastSeen)
	return err
}

func (p *Postgres) GetSession(ctx context.Context, id string) (model.Session, error) {
	var s model.Session
	err := p.db.QueryRowContext(ctx, `SELECT id, customer_id, token, COALESCE(name,''), COALESCE(email,''), COALESCE(mobile,''), created_at, last_seen FROM sessions WHERE id=$1`, id).
		Scan(&s.ID, &s.Customer.ID, &s.Customer.Token, &s.Customer.Name, &s.Customer.Email, &s.Customer.Mobile, &s.CreatedAt, &s.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	return s, err
}

func (p *Postgres) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `UPDATE sessions SET last_seen=$2 WHERE id=$1`, id, at)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (p *Postgres) DeleteSession(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (p *Postgres) ExpireSessions(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `DELETE FROM sessions WHERE last_seen < $1 RETURNING id`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, rows.Err()
}

// Wizard drafts

func (p *Postgres) GetWizard(ctx context.Context, sessionID string) (model.WizardState, error) {
	st := model.WizardState{SessionID: sessionID}
	var mode string
	var draft []byte
	err := p.db.QueryRowContext(ctx, `SELECT mode, step, draft, updated_at FROM wizard_states WHERE session_id=$1`, sessionID).
		Scan(&mode, &st.Step, &draft, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WizardState{}, ErrNotFound
	}
	if err != nil {
		return model.WizardState{}, err
	}
	st.Mode = model.Mode(mode)
	if err := json.Unmarshal(draft, &st.Draft); err != nil {
		return model.WizardState{}, fmt.Errorf("decode draft: %w", err)
	}
	return st, nil
}

func (p *Postgres) SaveWizard(ctx context.Context, st model.WizardState) error {
	draft, err := json.Marshal(st.Draft)
	if err != nil {
		return err
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO wizard_states (session_id, mode, step, draft, updated_at) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (session_id) DO UPDATE SET mode=EXCLUDED.mode, step=EXCLUDED.step, draft=EXCLUDED.draft, updated_at=EXCLUDED.updated_at`,
		st.SessionID, string(st.Mode), int(st.Step), draft, st.UpdatedAt)
	return err
}

func (p *Postgres) DeleteWizard(ctx context.Context, sessionID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM wizard_states WHERE session_id=$1`, sessionID)
	return err
}

// Submission log

func (p *Postgres) RecordSubmission(ctx context.Context, sub model.Submission) (model.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO submissions (id, session_id, customer_id, mode, shipment_id, status, message, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sub.ID, sub.SessionID, sub.CustomerID, string(sub.Mode), nullIfEmpty(sub.ShipmentID), sub.Status, nullIfEmpty(sub.Message), sub.CreatedAt)
	if err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

func (p *Postgres) ListSubmissions(ctx context.Context, customerID string, limit int) ([]model.Submission, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, session_id, mode, COALESCE(shipment_id,''), status, COALESCE(message,''), created_at
		FROM submissions WHERE customer_id=$1 ORDER BY created_at DESC LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Submission{}
	for rows.Next() {
		s := model.Submission{CustomerID: customerID}
		var mode string
		if err := rows.Scan(&s.ID, &s.SessionID, &mode, &s.ShipmentID, &s.Status, &s.Message, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Mode = model.Mode(mode)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, customerID string, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, customer_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, customerID, req.URL, ev, nullIfEmpty(req.Secret))
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, CustomerID: customerID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, customerID, eventType string) ([]model.Subscription, error) {
	want, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE customer_id=$1 AND events @> $2::jsonb`, customerID, string(want))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		s := model.Subscription{CustomerID: customerID}
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, customerID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE customer_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, customerID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE customer_id=$1 ORDER BY id LIMIT $2`, customerID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Subscription
	var last string
	for rows.Next() {
		s := model.Subscription{CustomerID: customerID}
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, "", err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, customerID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE customer_id=$1 AND id::text=$2`, customerID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, customerID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, customer_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
		ON CONFLICT (customer_id, event_type, url, dedup_key) DO NOTHING`, id, customerID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, customer_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.CustomerID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

// FailWebhookDelivery marks the delivery failed and copies it into the DLQ in one transaction.
func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO webhook_dlq (id, customer_id, delivery_id, event_type, url, secret, payload, attempts, last_error)
		SELECT gen_random_uuid(), customer_id, id, event_type, url, secret, payload, attempts, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError)); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, customerID, status string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE customer_id=$1`
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, q+` AND status=$2 ORDER BY created_at LIMIT $3`, customerID, status, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, q+` ORDER BY created_at LIMIT $2`, customerID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil {
			return nil, err
		}
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid {
			m["nextAttemptAt"] = nextAt.Time
		}
		if lastErr != "" {
			m["lastError"] = lastErr
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, customerID, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE customer_id=$1 AND id::text=$2`, customerID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// computeDedupKey prefers the event id in the payload, else a short content hash.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
