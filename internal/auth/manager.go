package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shipportal/internal/metrics"
	"shipportal/internal/model"
	"shipportal/internal/store"
)

// ErrUnauthenticated covers missing, forged, unknown and idle-expired tokens.
var ErrUnauthenticated = errors.New("please log in to continue")

// DefaultIdleTimeout logs a session out after this long without a request.
const DefaultIdleTimeout = 15 * time.Minute

// Principal is the identity handlers act on behalf of.
type Principal struct {
	SessionID    string
	CustomerID   string
	BackendToken string
	Name         string
	Email        string
	Mobile       string
}

// Authenticator checks credentials against the backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (model.Customer, error)
}

type Manager struct {
	backend  Authenticator
	sessions store.SessionStore
	drafts   store.DraftStore
	signer   signer
	idle     time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewManager builds a Manager. An empty secret gets a random per-process key,
// so tokens do not survive a restart.
func NewManager(b Authenticator, sessions store.SessionStore, drafts store.DraftStore, secret string, idle time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
		log.Warn("AUTH_SECRET not set; using an ephemeral signing key")
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Manager{backend: b, sessions: sessions, drafts: drafts, signer: signer{secret: key}, idle: idle, log: log.Named("auth"), now: time.Now}
}

// IdleTimeout reports the configured inactivity window.
func (m *Manager) IdleTimeout() time.Duration { return m.idle }

// Login authenticates with the backend and opens a portal session.
func (m *Manager) Login(ctx context.Context, email, password string) (string, Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", Principal{}, errors.New("email and password are required")
	}
	cust, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return "", Principal{}, err
	}
	if cust.ID == "" || cust.Token == "" {
		return "", Principal{}, errors.New("login response is missing customer details")
	}
	now := m.now().UTC()
	s := model.Session{ID: uuid.New().String(), Customer: cust, CreatedAt: now, LastSeen: now}
	if err := m.sessions.SaveSession(ctx, s); err != nil {
		return "", Principal{}, err
	}
	tok, err := m.signer.sign(s.ID)
	if err != nil {
		_ = m.sessions.DeleteSession(ctx, s.ID)
		return "", Principal{}, err
	}
	metrics.ActiveSessions.Inc()
	m.log.Info("session opened", zap.String("session_id", s.ID), zap.String("customer_id", cust.ID))
	return tok, principalOf(s), nil
}

// Resolve verifies token and slides the session's inactivity window.
func (m *Manager) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	id, err := m.signer.verify(token)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	s, err := m.sessions.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, err
	}
	now := m.now().UTC()
	if now.Sub(s.LastSeen) > m.idle {
		m.end(ctx, id, "idle")
		return Principal{}, ErrUnauthenticated
	}
	if err := m.sessions.TouchSession(ctx, id, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return Principal{}, err
	}
	return principalOf(s), nil
}

// Logout ends the session behind token. Unknown tokens are not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	id, err := m.signer.verify(token)
	if err != nil {
		return ErrUnauthenticated
	}
	if _, err := m.sessions.GetSession(ctx, id); err != nil {
		return nil
	}
	m.end(ctx, id, "logout")
	return nil
}

// Sweep expires every idle session and clears its draft.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	ids, err := m.sessions.ExpireSessions(ctx, m.now().UTC().Add(-m.idle))
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		_ = m.drafts.DeleteWizard(ctx, id)
		metrics.ActiveSessions.Dec()
	}
	if len(ids) > 0 {
		m.log.Info("expired idle sessions", zap.Int("count", len(ids)))
	}
	return len(ids), nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.log.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}

func (m *Manager) end(ctx context.Context, id, reason string) {
	err := m.sessions.DeleteSession(ctx, id)
	_ = m.drafts.DeleteWizard(ctx, id)
	if err != nil {
		// a concurrent logout or sweep already closed it
		return
	}
	metrics.ActiveSessions.Dec()
	m.log.Info("session closed", zap.String("session_id", id), zap.String("reason", reason))
}

func principalOf(s model.Session) Principal {
	return Principal{
		SessionID:    s.ID,
		CustomerID:   s.Customer.ID,
		BackendToken: s.Customer.Token,
		Name:         s.Customer.Name,
		Email:        s.Customer.Email,
		Mobile:       s.Customer.Mobile,
	}
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by the API's auth middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
