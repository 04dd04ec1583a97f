package tracking

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"shipportal/internal/backend"
)

var (
	// ErrNotFound covers missing records, ownership mismatch and backend
	// failures alike, so callers cannot learn who owns a shipment.
	ErrNotFound = errors.New("shipment not found")
	// ErrUnauthenticated is returned before any network call when there is no token.
	ErrUnauthenticated = errors.New("please log in to track shipments")
)

// Fetcher is the backend call tracking needs.
type Fetcher interface {
	Track(ctx context.Context, token, shipmentID string) (backend.Record, bool, error)
}

type Service struct {
	Backend Fetcher
	Log     *zap.Logger
}

func NewService(f Fetcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Backend: f, Log: log.Named("tracking")}
}

// Track fetches a shipment's tracking record on behalf of userID.
func (s *Service) Track(ctx context.Context, userID, token, shipmentID string) (backend.Record, error) {
	if token == "" || userID == "" {
		return nil, ErrUnauthenticated
	}
	if shipmentID == "" {
		return nil, ErrNotFound
	}
	rec, found, err := s.Backend.Track(ctx, token, shipmentID)
	if err != nil {
		s.Log.Info("track lookup failed", zap.String("shipment_id", shipmentID), zap.Error(err))
		return nil, ErrNotFound
	}
	if !found {
		return nil, ErrNotFound
	}
	if CheckOwnership(rec, userID) != Authorized {
		s.Log.Warn("track ownership mismatch", zap.String("shipment_id", shipmentID), zap.String("user_id", userID))
		return nil, ErrNotFound
	}
	return rec, nil
}
