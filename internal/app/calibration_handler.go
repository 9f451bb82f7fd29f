// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Message kinds relayed to websocket clients.
const (
	KindAxes        = "axes"
	KindCalibration = "calibration"
	KindSession     = "session"
)

const clientSendBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is a command sent by the calibration page.
type WSMessage struct {
	Action string `json:"action"` // start, restart, cancel, session_start, session_reset, collect
	Color  string `json:"color,omitempty"`
}

// WSResponse is pushed to the calibration page.
type WSResponse struct {
	Type    string          `json:"type"` // axes, calibration, session, ack, error
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

var wsActions = map[string]bool{
	"start":            true,
	"restart":          true,
	"cancel":           true,
	ActionSessionStart: true,
	ActionSessionReset: true,
	ActionCollect:      true,
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the latest controller output per kind and fans every update
// out to the connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	latest  map[string]json.RawMessage
	clients map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		latest:  make(map[string]json.RawMessage),
		clients: make(map[*wsClient]struct{}),
	}
}

// Latest returns the last payload of kind.
func (h *Hub) Latest(kind string) (json.RawMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.latest[kind]
	return p, ok
}

// Update records payload as the latest of kind and broadcasts it. Invalid
// JSON is dropped.
func (h *Hub) Update(kind string, payload []byte) {
	if !json.Valid(payload) {
		log.Printf("web: dropping invalid %s payload", kind)
		return
	}
	data := json.RawMessage(append([]byte(nil), payload...))
	msg, err := json.Marshal(WSResponse{Type: kind, Data: data})
	if err != nil {
		log.Printf("web: %s marshal error: %v", kind, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[kind] = data
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow client; it catches up on the next update
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for _, kind := range []string{KindCalibration, KindSession, KindAxes} {
		if data, ok := h.latest[kind]; ok {
			if msg, err := json.Marshal(WSResponse{Type: kind, Data: data}); err == nil {
				c.send <- msg
			}
		}
	}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// HandleCalibrationWS streams controller output to the page and forwards
// its commands to the controller.
func (s *WebServer) HandleCalibrationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn, send: make(chan []byte, clientSendBuffer)}
	s.hub.register(client)
	defer s.hub.unregister(client)

	// single writer per connection
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket read error: %v", err)
			}
			break
		}
		s.reply(client, s.forwardCommand(msg), msg.Action)
	}

	s.hub.unregister(client)
	<-writerDone
}

func (s *WebServer) forwardCommand(msg WSMessage) error {
	if !wsActions[msg.Action] {
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.Action == ActionCollect && msg.Color == "" {
		return fmt.Errorf("collect needs a color")
	}
	payload, err := json.Marshal(Command{Action: msg.Action, Color: msg.Color})
	if err != nil {
		return err
	}
	if err := s.pub.Publish(s.commandTopic, payload); err != nil {
		return fmt.Errorf("forward %s: %w", msg.Action, err)
	}
	log.Printf("web: forwarded %s command", msg.Action)
	return nil
}

func (s *WebServer) reply(c *wsClient, err error, action string) {
	resp := WSResponse{Type: "ack", Message: action}
	if err != nil {
		resp = WSResponse{Type: "error", Message: err.Error()}
	}
	msg, merr := json.Marshal(resp)
	if merr != nil {
		return
	}
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	if _, ok := s.hub.clients[c]; ok {
		select {
		case c.send <- msg:
		default:
		}
	}
}
