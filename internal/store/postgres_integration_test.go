//go:build postgres_integration

package store

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipportal/internal/model"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	ctx := t.Context()
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Ping(ctx))
	require.NoError(t, p.Migrate(ctx))

	sid := uuid.New().String()
	require.NoError(t, p.SaveSession(ctx, model.Session{ID: sid, Customer: model.Customer{ID: "42"}, LastSeen: time.Now()}))
	s, err := p.GetSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "42", s.Customer.ID)

	st := model.WizardState{SessionID: sid, Mode: model.ModeAdd, Step: model.StepDelivery}
	st.Draft.Name = model.Text("Books")
	require.NoError(t, p.SaveWizard(ctx, st))
	got, err := p.GetWizard(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, model.StepDelivery, got.Step)
	assert.Equal(t, "Books", got.Draft.Name.Text)

	require.NoError(t, p.DeleteWizard(ctx, sid))
	_, err = p.GetWizard(ctx, sid)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, p.DeleteSession(ctx, sid))
	assert.ErrorIs(t, p.DeleteSession(ctx, sid), ErrNotFound)
}
