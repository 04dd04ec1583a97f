package api

import (
	"sync"

	"shipportal/internal/wizard"
)

// SSEEvent is one message on a session's event stream.
type SSEEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EventBroker fans session events out to stream subscribers.
type EventBroker interface {
	Subscribe(sessionID string) chan SSEEvent
	Unsubscribe(sessionID string, ch chan SSEEvent)
	Publish(sessionID string, evt SSEEvent)
	Close() error
}

// Broker is the in-process EventBroker. Slow subscribers drop events rather
// than block publishers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SSEEvent]struct{} // sessionId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(sessionID string) chan SSEEvent {
	ch := make(chan SSEEvent, 8)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = map[chan SSEEvent]struct{}{}
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(sessionID string, ch chan SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[sessionID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, sessionID)
	}
	close(ch)
}

func (b *Broker) Publish(sessionID string, evt SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) Close() error { return nil }

// brokerSink lets the wizard controller publish without knowing about SSE.
type brokerSink struct{ b EventBroker }

func (s brokerSink) Publish(sessionID string, evt wizard.Event) {
	s.b.Publish(sessionID, SSEEvent{Type: evt.Type, Data: evt.Data})
}
