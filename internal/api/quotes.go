package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shipportal/internal/auth"
	"shipportal/internal/model"
)

const (
	wsReadLimit = 64 << 10
	wsPongWait  = 60 * time.Second
	wsPingEvery = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// QuoteHandler handles POST /v1/quotes. It prices a partial draft without
// touching the wizard.
func (s *Server) QuoteHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var q model.QuoteRequest
	if err := decodeJSON(w, r, &q); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, s.Wizard.Quote(q, p.CustomerID))
}

// QuoteWSHandler handles /v1/quotes/ws. Each {"type":"quote"} message is
// answered with a "charges" message carrying the same id.
func (s *Server) QuoteWSHandler(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	log := s.logFor(r)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })

	var mu sync.Mutex
	write := func(v wsMessage) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("quote socket closed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		var out wsMessage
		switch msg.Type {
		case "ping":
			out = wsMessage{Type: "pong", ID: msg.ID}
		case "quote":
			var q model.QuoteRequest
			if err := json.Unmarshal(msg.Payload, &q); err != nil {
				out = wsError(msg.ID, "invalid quote payload")
				break
			}
			payload, _ := json.Marshal(s.Wizard.Quote(q, p.CustomerID))
			out = wsMessage{Type: "charges", ID: msg.ID, Payload: payload}
		default:
			out = wsError(msg.ID, "unknown message type")
		}
		if err := write(out); err != nil {
			return
		}
	}
}

func wsError(id, message string) wsMessage {
	b, _ := json.Marshal(map[string]string{"message": message})
	return wsMessage{Type: "error", ID: id, Payload: b}
}
