// Package config resolves process settings from the environment once at startup.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	Env        string
	BackendURL string
	// BackendTimeout bounds one backend HTTP attempt.
	BackendTimeout time.Duration
	FCMToken       string
	DatabaseURL    string
	Migrate        bool
	RedisURL       string
	AuthSecret     string
	IdleTimeout    time.Duration
	LookupDebounce time.Duration
	PricingFile    string
	RateRPS        float64
	RateBurst      int
	WebhookMax     int
	// BreakerFailures is the consecutive failure count that opens the backend breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Load reads an optional .env file then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Load uses os.Getenv; tests pass a map.
func FromEnv(getenv func(string) string) (Config, error) {
	e := env{get: getenv}
	c := Config{
		Port:            e.or("PORT", "8080"),
		Env:             e.or("APP_ENV", "development"),
		BackendURL:      strings.TrimRight(e.or("BACKEND_BASE_URL", "http://localhost:9000/api"), "/"),
		BackendTimeout:  e.durationOr("BACKEND_TIMEOUT", 15*time.Second),
		FCMToken:        e.get("FCM_TOKEN"),
		DatabaseURL:     e.get("DATABASE_URL"),
		Migrate:         e.boolOr("DB_MIGRATE", true),
		RedisURL:        e.get("REDIS_URL"),
		AuthSecret:      e.get("AUTH_SECRET"),
		IdleTimeout:     e.durationOr("SESSION_IDLE_TIMEOUT", 15*time.Minute),
		LookupDebounce:  e.durationOr("LOOKUP_DEBOUNCE", 300*time.Millisecond),
		PricingFile:     e.get("PRICING_FILE"),
		RateRPS:         e.floatOr("RATE_RPS", 20),
		RateBurst:       e.intOr("RATE_BURST", 40),
		WebhookMax:      e.intOr("WEBHOOK_MAX_ATTEMPTS", 10),
		BreakerFailures: e.intOr("BACKEND_BREAKER_FAILURES", 5),
		BreakerCooldown: e.durationOr("BACKEND_BREAKER_COOLDOWN", 30*time.Second),
	}
	var errs []error
	errs = append(errs, e.errs...)
	if c.Production() && c.AuthSecret == "" {
		errs = append(errs, errors.New("AUTH_SECRET is required in production"))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TIMEOUT must be positive"))
	}
	if c.RateRPS < 0 {
		errs = append(errs, errors.New("RATE_RPS must not be negative"))
	}
	return c, errors.Join(errs...)
}

func (c Config) Production() bool { return c.Env == "production" }

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) or(k, d string) string {
	if v := strings.TrimSpace(e.get(k)); v != "" {
		return v
	}
	return d
}

func (e *env) durationOr(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(k))
	if v == "" {
		return d
	}
	if n, err := time.ParseDuration(v); err == nil {
		return n
	}
	// bare numbers are milliseconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	e.errs = append(e.errs, errors.New(k+": invalid duration "+strconv.Quote(v)))
	return d
}

func (e *env) intOr(k string, d int) int {
	v := strings.TrimSpace(e.get(k))
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, errors.New(k+": invalid integer "+strconv.Quote(v)))
		return d
	}
	return n
}

func (e *env) floatOr(k string, d float64) float64 {
	v := strings.TrimSpace(e.get(k))
	if v == "" {
		return d
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, errors.New(k+": invalid number "+strconv.Quote(v)))
		return d
	}
	return n
}

func (e *env) boolOr(k string, d bool) bool {
	v := strings.TrimSpace(e.get(k))
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, errors.New(k+": invalid boolean "+strconv.Quote(v)))
		return d
	}
	return b
}
