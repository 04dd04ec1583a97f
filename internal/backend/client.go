// Package backend talks to the remote logistics REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"shipportal/internal/metrics"
)

// Encoding is a request body format.
type Encoding string

const (
	EncMultipart  Encoding = "multipart"
	EncURLEncoded Encoding = "urlencoded"
	EncJSON       Encoding = "json"
)

// fallbackOrder is tried in sequence while the backend rejects the encoding.
var fallbackOrder = []Encoding{EncMultipart, EncURLEncoded, EncJSON}

// Envelope is the response shape of every backend endpoint.
type Envelope struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	ShipmentID FlexString      `json:"shipment_id"`
}

// OK reports a "success" status.
func (e *Envelope) OK() bool { return strings.EqualFold(e.Status, "success") }

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	FCMToken string
	// Breaker trips after this many consecutive transport/5xx failures. Zero means 5.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	fcmToken string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker
	log      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		fcmToken: cfg.FCMToken,
		http:     &http.Client{Timeout: timeout},
		log:      logger.Named("backend"),
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "logistics-backend",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// BreakerState exposes the breaker state for readiness checks.
func (c *Client) BreakerState() gobreaker.State { return c.cb.State() }

// FCMToken is sent with login so the backend can push notifications.
func (c *Client) FCMToken() string { return c.fcmToken }

// outcome carries a result through the breaker without counting
// backend-level rejections as breaker failures.
type outcome struct {
	env *Envelope
	err error
}

// Call posts fields to endpoint. Any non-success outcome is an *Error.
// The only automatic re-send is the encoding fallback.
func (c *Client) Call(ctx context.Context, endpoint, token string, fields map[string]string) (*Envelope, error) {
	start := time.Now()
	defer func() { metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	res, err := c.cb.Execute(func() (interface{}, error) {
		env, err := c.post(ctx, endpoint, token, fields)
		if tripsBreaker(err) {
			return nil, err
		}
		return outcome{env: env, err: err}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.BackendCalls.WithLabelValues(endpoint, "", KindUnavailable.String()).Inc()
		return nil, &Error{Kind: KindUnavailable, Endpoint: endpoint, Err: err}
	}
	if err != nil {
		return nil, err
	}
	o := res.(outcome)
	return o.env, o.err
}

func tripsBreaker(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	if be.Kind == KindTransport {
		// a caller cancelling is not the backend's fault
		return !errors.Is(be.Err, context.Canceled)
	}
	return be.Kind == KindHTTP && be.StatusCode >= 500
}

func (c *Client) post(ctx context.Context, endpoint, token string, fields map[string]string) (*Envelope, error) {
	for i, enc := range fallbackOrder {
		if i > 0 {
			metrics.EncodingFallbacks.WithLabelValues(endpoint, string(enc)).Inc()
			c.log.Info("retrying with fallback encoding", zap.String("endpoint", endpoint), zap.String("encoding", string(enc)))
		}
		status, body, err := c.send(ctx, endpoint, token, enc, fields)
		if err != nil {
			metrics.BackendCalls.WithLabelValues(endpoint, string(enc), KindTransport.String()).Inc()
			c.log.Warn("backend request failed", zap.String("endpoint", endpoint), zap.Error(err))
			return nil, &Error{Kind: KindTransport, Endpoint: endpoint, Err: err}
		}
		if rejectsEncoding(status, body) && i < len(fallbackOrder)-1 {
			continue
		}
		env, err := decode(endpoint, status, body)
		result := "success"
		var be *Error
		if errors.As(err, &be) {
			result = be.Kind.String()
		}
		metrics.BackendCalls.WithLabelValues(endpoint, string(enc), result).Inc()
		return env, err
	}
	// unreachable: the last encoding always returns
	return nil, &Error{Kind: KindHTTP, Endpoint: endpoint}
}

// rejectsEncoding: 415, or a 4xx whose body is not a JSON envelope.
func rejectsEncoding(status int, body []byte) bool {
	if status == http.StatusUnsupportedMediaType {
		return true
	}
	if status < 400 || status >= 500 {
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return true
	}
	_, ok := probe["status"]
	return !ok
}

func decode(endpoint string, status int, body []byte) (*Envelope, error) {
	var env Envelope
	decodeErr := json.Unmarshal(body, &env)
	if status >= 400 {
		e := &Error{Kind: KindHTTP, Endpoint: endpoint, StatusCode: status}
		if decodeErr == nil {
			e.Message = env.Message
		}
		return nil, e
	}
	if decodeErr != nil {
		return nil, &Error{Kind: KindDecode, Endpoint: endpoint, StatusCode: status, Err: decodeErr}
	}
	if !env.OK() {
		return &env, &Error{Kind: KindStatus, Endpoint: endpoint, StatusCode: status, Message: env.Message}
	}
	return &env, nil
}

func (c *Client) send(ctx context.Context, endpoint, token string, enc Encoding, fields map[string]string) (int, []byte, error) {
	body, contentType, err := encode(enc, fields)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, b, nil
}

func encode(enc Encoding, fields map[string]string) (io.Reader, string, error) {
	switch enc {
	case EncURLEncoded:
		v := url.Values{}
		for k, val := range fields {
			v.Set(k, val)
		}
		return strings.NewReader(v.Encode()), "application/x-www-form-urlencoded", nil
	case EncJSON:
		b, err := json.Marshal(fields)
		if err != nil {
			return nil, "", fmt.Errorf("marshal body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	default:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, k := range sortedKeys(fields) {
			if err := w.WriteField(k, fields[k]); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", k, err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
