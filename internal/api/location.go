package api

import (
	"context"
	"time"

	"shipportal/internal/auth"
	"shipportal/internal/backend"
	"shipportal/internal/lookup"
	"shipportal/internal/model"
)

// locationBackend is the part of the backend client pincode lookups use.
type locationBackend interface {
	PincodeDetails(ctx context.Context, token, pincode string) (backend.PincodeDetails, error)
	Areas(ctx context.Context, token, pincode string) ([]model.SelectOption, error)
}

// Locations resolves pincodes and area lists as the customer types. Requests
// are coalesced per session and address block, so an older lookup can never
// overwrite a newer one. Results are cached per pincode.
type Locations struct {
	backend  locationBackend
	pincodes *lookup.Coalescer[backend.PincodeDetails]
	areas    *lookup.Coalescer[[]model.SelectOption]
	pinCache *lookup.Cache[string, backend.PincodeDetails]
	areaList *lookup.Cache[string, []model.SelectOption]
}

// NewLocations constructs a Locations.
func NewLocations(b locationBackend, debounce, ttl time.Duration) *Locations {
	return &Locations{
		backend:  b,
		pincodes: lookup.NewCoalescer[backend.PincodeDetails]("pincode", debounce),
		areas:    lookup.NewCoalescer[[]model.SelectOption]("areas", debounce),
		pinCache: lookup.NewCache[string, backend.PincodeDetails](ttl),
		areaList: lookup.NewCache[string, []model.SelectOption](ttl),
	}
}

func (l *Locations) key(p auth.Principal, field string) string {
	if field == "" {
		field = "default"
	}
	return p.SessionID + "|" + field
}

// Pincode resolves pin to state, city and country for one address block.
func (l *Locations) Pincode(ctx context.Context, p auth.Principal, field, pin string) (backend.PincodeDetails, error) {
	return l.pincodes.Do(ctx, l.key(p, field), func(ctx context.Context) (backend.PincodeDetails, error) {
		if d, ok := l.pinCache.Get(pin); ok {
			return d, nil
		}
		d, err := l.backend.PincodeDetails(ctx, p.BackendToken, pin)
		if err != nil {
			return backend.PincodeDetails{}, err
		}
		l.pinCache.Set(pin, d)
		return d, nil
	})
}

// Areas lists the delivery areas of pin for one address block.
func (l *Locations) Areas(ctx context.Context, p auth.Principal, field, pin string) ([]model.SelectOption, error) {
	return l.areas.Do(ctx, l.key(p, field), func(ctx context.Context) ([]model.SelectOption, error) {
		if a, ok := l.areaList.Get(pin); ok {
			return a, nil
		}
		a, err := l.backend.Areas(ctx, p.BackendToken, pin)
		if err != nil {
			return nil, err
		}
		l.areaList.Set(pin, a)
		return a, nil
	})
}

// Purge drops expired cache entries.
func (l *Locations) Purge() int { return l.pinCache.Purge() + l.areaList.Purge() }
