package api

import (
	"net/http"
	"net/url"
	"time"

	"shipportal/internal/buildinfo"
)

// DebugJSON reports build and effective runtime settings. Secrets are reduced
// to presence flags.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	backendHost := ""
	if u, err := url.Parse(s.cfg.BackendURL); err == nil {
		backendHost = u.Host
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":               s.cfg.Port,
			"env":                s.cfg.Env,
			"backendHost":        backendHost,
			"idleTimeout":        s.cfg.IdleTimeout.String(),
			"lookupDebounce":     s.cfg.LookupDebounce.String(),
			"rateRps":            s.cfg.RateRPS,
			"rateBurst":          s.cfg.RateBurst,
			"webhookMaxAttempts": s.cfg.WebhookMax,
			"hasDatabaseUrl":     s.cfg.DatabaseURL != "",
			"hasRedisUrl":        s.cfg.RedisURL != "",
			"hasAuthSecret":      s.cfg.AuthSecret != "",
		},
		"backendBreaker": s.Backend.BreakerState().String(),
	})
}
