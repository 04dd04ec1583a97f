package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipportal/internal/metrics"
	"shipportal/internal/model"
	"shipportal/internal/store"
)

type stubBackend struct {
	cust model.Customer
	err  error
}

func (s stubBackend) Login(ctx context.Context, email, password string) (model.Customer, error) {
	return s.cust, s.err
}

func newTestManager(t *testing.T) (*Manager, *store.Memory, *time.Time) {
	t.Helper()
	mem := store.NewMemory()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewManager(stubBackend{cust: model.Customer{ID: "42", Token: "backend-tok", Name: "Asha"}}, mem, mem, "secret", 15*time.Minute, nil)
	m.now = func() time.Time { return now }
	return m, mem, &now
}

func TestLoginAndResolve(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	tok, p, err := m.Login(ctx, " asha@example.com ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "42", p.CustomerID)
	assert.Equal(t, "backend-tok", p.BackendToken)

	got, err := m.Resolve(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := NewManager(stubBackend{err: errors.New("Invalid credentials")}, mem, mem, "secret", 0, nil)
	_, _, err := m.Login(ctx, "a@b.co", "pw")
	assert.EqualError(t, err, "Invalid credentials")
	_, _, err = m.Login(ctx, "", "pw")
	assert.Error(t, err)

	m = NewManager(stubBackend{cust: model.Customer{ID: "42"}}, mem, mem, "secret", 0, nil)
	_, _, err = m.Login(ctx, "a@b.co", "pw")
	assert.Error(t, err)
}

func TestResolveRejectsForgedTokens(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	tok, p, err := m.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sid": p.SessionID}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	noSID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": p.SessionID}).
		SignedString([]byte("secret"))
	require.NoError(t, err)
	otherSID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sid": "other-id"}).
		SignedString([]byte("wrong"))
	require.NoError(t, err)

	for _, bad := range []string{"", "nodot", tok + "x", ".", unsigned, noSID, otherSID} {
		_, err := m.Resolve(ctx, bad)
		assert.ErrorIs(t, err, ErrUnauthenticated, bad)
	}

	other := NewManager(stubBackend{}, store.NewMemory(), store.NewMemory(), "different", 0, nil)
	_, err = other.Resolve(ctx, tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSignerRoundTrip(t *testing.T) {
	s := signer{secret: []byte("secret")}
	tok, err := s.sign("sess-1")
	require.NoError(t, err)
	id, err := s.verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)

	_, err = signer{secret: []byte("other")}.verify(tok)
	assert.ErrorIs(t, err, errBadToken)
}

func activeSessions(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.ActiveSessions.Write(&m))
	return m.GetGauge().GetValue()
}

func TestSessionClosedOnceCountsOnce(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	before := activeSessions(t)
	_, p, err := m.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)
	assert.Equal(t, before+1, activeSessions(t))

	// idle expiry and logout racing on the same session
	m.end(ctx, p.SessionID, "idle")
	m.end(ctx, p.SessionID, "logout")
	assert.Equal(t, before, activeSessions(t))

	_, p, err = m.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)
	m.end(ctx, p.SessionID, "logout")
	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, before, activeSessions(t))
}

func TestIdleTimeoutSlides(t *testing.T) {
	ctx := context.Background()
	m, mem, now := newTestManager(t)
	tok, p, err := m.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)
	require.NoError(t, mem.SaveWizard(ctx, model.WizardState{SessionID: p.SessionID}))

	*now = now.Add(14 * time.Minute)
	_, err = m.Resolve(ctx, tok)
	require.NoError(t, err, "activity inside the window keeps the session")

	*now = now.Add(14 * time.Minute)
	_, err = m.Resolve(ctx, tok)
	require.NoError(t, err, "window slides from the last request")

	*now = now.Add(16 * time.Minute)
	_, err = m.Resolve(ctx, tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = mem.GetWizard(ctx, p.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound, "draft cleared with the session")
}

func TestLogoutAndSweep(t *testing.T) {
	ctx := context.Background()
	m, mem, now := newTestManager(t)
	tok, _, err := m.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, tok))
	_, err = m.Resolve(ctx, tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	require.NoError(t, m.Logout(ctx, tok))

	_, p, err := m.Login(ctx, "a@b.co", "pw")
	require.NoError(t, err)
	require.NoError(t, mem.SaveWizard(ctx, model.WizardState{SessionID: p.SessionID}))
	*now = now.Add(time.Hour)
	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = mem.GetWizard(ctx, p.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBearerTokenAndContext(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, BearerToken(r))
	r.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(r))

	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	p, ok := FromContext(WithPrincipal(context.Background(), Principal{CustomerID: "42"}))
	require.True(t, ok)
	assert.Equal(t, "42", p.CustomerID)
}
