package api

import (
	"context"
	"errors"
	"time"

	"shipportal/internal/lookup"
	"shipportal/internal/model"
)

var errUnknownCatalog = errors.New("unknown catalog")

type catalogBackend interface {
	Categories(ctx context.Context, token string) ([]model.SelectOption, error)
	Commodities(ctx context.Context, token string) ([]model.SelectOption, error)
	Services(ctx context.Context, token string) ([]model.SelectOption, error)
	PaymentModes(ctx context.Context, token string) ([]model.SelectOption, error)
}

// Catalog caches the backend's option lists. The lists are the same for every
// customer, so whichever session asks first fills the cache for all.
type Catalog struct {
	backend catalogBackend
	cache   *lookup.Cache[string, []model.SelectOption]
}

func NewCatalog(b catalogBackend, ttl time.Duration) *Catalog {
	return &Catalog{backend: b, cache: lookup.NewCache[string, []model.SelectOption](ttl)}
}

// List returns one option list: categories, commodities, services or payment-modes.
func (c *Catalog) List(ctx context.Context, token, kind string) ([]model.SelectOption, error) {
	if v, ok := c.cache.Get(kind); ok {
		return v, nil
	}
	var fetch func(context.Context, string) ([]model.SelectOption, error)
	switch kind {
	case "categories":
		fetch = c.backend.Categories
	case "commodities":
		fetch = c.backend.Commodities
	case "services":
		fetch = c.backend.Services
	case "payment-modes":
		fetch = c.backend.PaymentModes
	default:
		return nil, errUnknownCatalog
	}
	opts, err := fetch(ctx, token)
	if err != nil {
		return nil, err
	}
	c.cache.Set(kind, opts)
	return opts, nil
}

// Options gathers every list the wizard reconciles against.
func (c *Catalog) Options(ctx context.Context, token string) (model.Options, error) {
	var o model.Options
	for _, item := range []struct {
		kind string
		dst  *[]model.SelectOption
	}{
		{"categories", &o.Categories},
		{"commodities", &o.Commodities},
		{"services", &o.ServiceTypes},
		{"payment-modes", &o.PaymentModes},
	} {
		v, err := c.List(ctx, token, item.kind)
		if err != nil {
			return model.Options{}, err
		}
		*item.dst = v
	}
	return o, nil
}
