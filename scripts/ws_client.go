// Package main runs a demo WebSocket client that logs in and requests a live quote.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	creds, _ := json.Marshal(map[string]string{"email": os.Getenv("EMAIL"), "password": os.Getenv("PASSWORD")})
	resp, err := http.Post(base+"/v1/auth/login", "application/json", bytes.NewReader(creds))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("login failed: %s", resp.Status)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		log.Fatal(err)
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/quotes/ws", RawQuery: url.Values{"access_token": {login.Token}}.Encode()}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	quote := []byte(`{"grossWeight":"12","invoiceValue":"10000","insurance":{"value":"1","label":"Yes"},"insuranceValue":"10000","isMetro":true}`)
	if err := c.WriteJSON(wsMessage{Type: "quote", ID: "q1", Payload: quote}); err != nil {
		log.Fatal(err)
	}
	_ = c.SetReadDeadline(time.Now().Add(10 * time.Second))
	var msg wsMessage
	if err := c.ReadJSON(&msg); err != nil {
		log.Fatal(err)
	}
	log.Printf("%s %s: %s", msg.Type, msg.ID, msg.Payload)
}
