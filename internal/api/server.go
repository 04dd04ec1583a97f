package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shipportal/internal/auth"
	"shipportal/internal/backend"
	"shipportal/internal/config"
	"shipportal/internal/logging"
	"shipportal/internal/metrics"
	"shipportal/internal/pricing"
	"shipportal/internal/store"
	"shipportal/internal/tracking"
	"shipportal/internal/webhooks"
	"shipportal/internal/wizard"
)

// catalogTTL bounds how stale the option lists may get.
const catalogTTL = 10 * time.Minute

type Server struct {
	Store     store.Store
	Pub       *webhooks.Publisher
	Auth      *auth.Manager
	Broker    EventBroker
	Backend   *backend.Client
	Wizard    *wizard.Controller
	Tracking  *tracking.Service
	Catalog   *Catalog
	Locations *Locations
	Log       *zap.Logger

	cfg     config.Config
	limiter *rateLimiter
}

// NewServer wires every dependency from cfg. If DATABASE_URL is unset the
// in-memory store is used; if REDIS_URL is unset or unreachable events stay
// in process.
func NewServer(cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var s store.Store
	if cfg.DatabaseURL == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := sp.Migrate(ctx)
			cancel()
			if err != nil {
				_ = sp.Close()
				return nil, err
			}
		}
		s = sp
	}

	rates := pricing.DefaultConfig()
	if cfg.PricingFile != "" {
		c, err := pricing.LoadFile(cfg.PricingFile)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		rates = c
	}

	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable; using in-process events", zap.Error(err))
		} else {
			broker = rb
		}
	}

	client := backend.New(backend.Config{
		BaseURL:         cfg.BackendURL,
		Timeout:         cfg.BackendTimeout,
		FCMToken:        cfg.FCMToken,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerCooldown: cfg.BreakerCooldown,
	}, log)
	pub := webhooks.NewPublisher(s, log)
	catalog := NewCatalog(client, catalogTTL)

	srv := &Server{
		Store:     s,
		Pub:       pub,
		Auth:      auth.NewManager(client, s, s, cfg.AuthSecret, cfg.IdleTimeout, log),
		Broker:    broker,
		Backend:   client,
		Tracking:  tracking.NewService(client, log),
		Catalog:   catalog,
		Locations: NewLocations(client, cfg.LookupDebounce, catalogTTL),
		Log:       log,
		cfg:       cfg,
		limiter:   newRateLimiter(cfg.RateRPS, cfg.RateBurst),
	}
	srv.Wizard = wizard.New(wizard.Deps{
		Drafts:      s,
		Submissions: s,
		Backend:     client,
		Calculator:  pricing.NewCalculator(rates),
		Catalog:     catalog,
		Locator:     client,
		Sink:        brokerSink{b: broker},
		Hooks:       pub,
		Logger:      log,
	})
	return srv, nil
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Session
	mux.HandleFunc("POST /v1/auth/login", s.LoginHandler)
	mux.HandleFunc("POST /v1/auth/logout", s.LogoutHandler)
	mux.HandleFunc("GET /v1/auth/me", s.requireAuth(s.MeHandler))

	// Option lists and as-you-type lookups
	mux.HandleFunc("GET /v1/catalog/{kind}", s.requireAuth(s.CatalogHandler))
	mux.HandleFunc("GET /v1/lookup/pincode/{pin}", s.requireAuth(s.PincodeHandler))
	mux.HandleFunc("GET /v1/lookup/areas", s.requireAuth(s.AreasHandler))

	// Shipment form
	mux.HandleFunc("POST /v1/wizard/start", s.requireAuth(s.WizardStartHandler))
	mux.HandleFunc("GET /v1/wizard", s.requireAuth(s.WizardStateHandler))
	mux.HandleFunc("PATCH /v1/wizard", s.requireAuth(s.WizardUpdateHandler))
	mux.HandleFunc("POST /v1/wizard/next", s.requireAuth(s.WizardNextHandler))
	mux.HandleFunc("POST /v1/wizard/back", s.requireAuth(s.WizardBackHandler))
	mux.HandleFunc("POST /v1/wizard/submit", s.requireAuth(s.WizardSubmitHandler))
	mux.HandleFunc("POST /v1/wizard/cancel", s.requireAuth(s.WizardCancelHandler))
	mux.HandleFunc("POST /v1/wizard/reconcile", s.requireAuth(s.WizardReconcileHandler))
	mux.HandleFunc("GET /v1/wizard/events", s.requireAuth(s.WizardEventsHandler))

	// Quotes
	mux.HandleFunc("POST /v1/quotes", s.requireAuth(s.QuoteHandler))
	mux.HandleFunc("GET /v1/quotes/ws", s.requireAuth(s.QuoteWSHandler))

	// Shipments and tracking
	mux.HandleFunc("GET /v1/shipments", s.requireAuth(s.ShipmentsHandler))
	mux.HandleFunc("GET /v1/shipments/{id}", s.requireAuth(s.ShipmentByIDHandler))
	mux.HandleFunc("GET /v1/track/{id}", s.requireAuth(s.TrackHandler))
	mux.HandleFunc("GET /v1/submissions", s.requireAuth(s.SubmissionsHandler))

	// Address book and profile
	mux.HandleFunc("GET /v1/addresses", s.requireAuth(s.AddressesHandler))
	mux.HandleFunc("POST /v1/addresses", s.requireAuth(s.AddAddressHandler))
	mux.HandleFunc("PUT /v1/addresses/{id}", s.requireAuth(s.UpdateAddressHandler))
	mux.HandleFunc("DELETE /v1/addresses/{id}", s.requireAuth(s.DeleteAddressHandler))
	mux.HandleFunc("PUT /v1/profile", s.requireAuth(s.ProfileHandler))

	// Webhooks
	mux.HandleFunc("GET /v1/subscriptions", s.requireAuth(s.ListSubscriptionsHandler))
	mux.HandleFunc("POST /v1/subscriptions", s.requireAuth(s.CreateSubscriptionHandler))
	mux.HandleFunc("DELETE /v1/subscriptions/{id}", s.requireAuth(s.DeleteSubscriptionHandler))
	mux.HandleFunc("GET /v1/webhook-deliveries", s.requireAuth(s.WebhookDeliveriesHandler))
	mux.HandleFunc("POST /v1/webhook-deliveries/{id}/retry", s.requireAuth(s.WebhookDeliveryRetryHandler))

	// Health, metrics, debug, docs
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /debug/vars.json", s.DebugJSON)
	mux.HandleFunc("GET /openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("GET /openapi.json", s.OpenAPIJSONHandler)
	mux.HandleFunc("GET /docs", s.DocsHandler)

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.instrument(mux, h)
	h = s.recoverer(h)
	return logging.Middleware(s.Log, h)
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.cfg.WebhookMax, s.Log)
}

// RunMaintenance expires idle sessions and prunes caches and limiter state
// every interval until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) {
	go s.Auth.RunSweeper(ctx, interval)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n := s.Locations.Purge()
			if s.limiter != nil {
				s.limiter.sweep(now, 10*time.Minute)
			}
			if n > 0 {
				s.Log.Debug("purged lookup cache", zap.Int("entries", n))
			}
		}
	}
}

// Close releases the store and the broker.
func (s *Server) Close() error {
	return errors.Join(s.Broker.Close(), s.Store.Close())
}
