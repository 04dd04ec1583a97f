package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"shipportal/internal/metrics"
	"shipportal/internal/store"
)

const (
	defaultMaxAttempts = 10
	batchSize          = 50
)

// Worker polls the delivery queue and POSTs due deliveries.
type Worker struct {
	Store       store.WebhookStore
	HTTP        *http.Client
	Log         *zap.Logger
	MaxAttempts int
	Interval    time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewWorker(s store.WebhookStore, maxAttempts int, log *zap.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Log:         log.Named("webhooks.worker"),
		MaxAttempts: maxAttempts,
		Interval:    time.Second,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

// Stop ends the poll loop and waits for the current batch to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, batchSize)
	if err != nil {
		w.Log.Warn("fetch due deliveries", zap.Error(err))
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		// unparseable URL will never succeed
		_ = w.Store.FailWebhookDelivery(ctx, it.ID, err.Error(), 0, 0)
		metrics.WebhookDeliveries.WithLabelValues(it.EventType, "failed").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", it.EventType)
	if it.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := int(time.Since(start).Milliseconds())
	code := 0
	success := false
	lastErr := ""
	if err != nil {
		lastErr = err.Error()
	} else {
		code = resp.StatusCode
		_ = resp.Body.Close()
		success = code >= 200 && code < 300
		if !success {
			lastErr = "unexpected status " + strconv.Itoa(code)
		}
	}

	status := "delivered"
	switch {
	case success:
		_ = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
	case it.Attempts+1 >= w.MaxAttempts:
		status = "failed"
		_ = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
		w.Log.Warn("webhook moved to dlq", zap.String("delivery_id", it.ID), zap.String("event_type", it.EventType), zap.Int("attempts", it.Attempts+1), zap.String("error", lastErr))
	default:
		status = "retry"
		next := time.Now().Add(nextBackoff(it.Attempts))
		_ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
