// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/emg_steering/internal/config"
)

// WebServer serves the calibration page, a JSON API with the latest
// controller output and the calibration websocket.
type WebServer struct {
	hub          *Hub
	pub          Publisher
	commandTopic string
}

// NewWebServer creates a server that forwards page commands to
// commandTopic through pub.
func NewWebServer(pub Publisher, commandTopic string) *WebServer {
	return &WebServer{hub: NewHub(), pub: pub, commandTopic: commandTopic}
}

// Hub returns the server's fan-out hub.
func (s *WebServer) Hub() *Hub { return s.hub }

func (s *WebServer) serveLatest(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := s.hub.Latest(kind)
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("web: %s write error: %v", kind, err)
		}
	}
}

// Handler returns the HTTP routes. Static files are served from staticDir
// when it exists.
func (s *WebServer) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/axes", s.serveLatest(KindAxes))
	mux.HandleFunc("GET /api/calibration", s.serveLatest(KindCalibration))
	mux.HandleFunc("GET /api/session", s.serveLatest(KindSession))
	mux.HandleFunc("/ws/calibration", s.HandleCalibrationWS)

	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			mux.Handle("/", http.FileServer(http.Dir(staticDir)))
		} else {
			log.Printf("web: static directory %s not found, serving API only", staticDir)
		}
	}
	return mux
}

// RunWeb relays controller output from MQTT to HTTP and websocket clients.
func RunWeb(cfg *config.Config, staticDir string) error {
	pub := &mqttPublisher{}
	srv := NewWebServer(pub, cfg.TopicCommand)

	var subs []mqttSub
	for topic, kind := range map[string]string{
		cfg.TopicAxes:        KindAxes,
		cfg.TopicCalibration: KindCalibration,
		cfg.TopicSession:     KindSession,
	} {
		subs = append(subs, mqttSub{topic: topic, handler: func(_ mqtt.Client, msg mqtt.Message) {
			srv.hub.Update(kind, msg.Payload())
		}})
	}

	client, err := connectMQTT("web", cfg.MQTTBroker, cfg.MQTTClientIDWeb, subs...)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub.client = client

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, srv.Handler(staticDir))
}
