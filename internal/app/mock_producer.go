// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/emg_steering/internal/config"
	"github.com/relabs-tech/emg_steering/internal/emg"
	"github.com/relabs-tech/emg_steering/internal/sensors"
	"github.com/relabs-tech/emg_steering/internal/timeutil"
)

// MockProducer publishes synthetic frames for both arms on every tick.
type MockProducer struct {
	pub    Publisher
	clock  timeutil.Clock
	period time.Duration
	bands  map[emg.Arm]*sensors.MockBand
	topics map[emg.Arm]string
}

// NewMockProducer creates a producer whose bands hold each gesture for
// hold before moving to the next.
func NewMockProducer(cfg *config.Config, clock timeutil.Clock, pub Publisher, hold time.Duration) *MockProducer {
	return &MockProducer{
		pub:    pub,
		clock:  clock,
		period: millis(cfg.MockFrameInterval),
		bands: map[emg.Arm]*sensors.MockBand{
			emg.Left:  sensors.NewMockBand(emg.Left, sensors.DefaultScript(emg.Left, hold.Seconds())),
			emg.Right: sensors.NewMockBand(emg.Right, sensors.DefaultScript(emg.Right, hold.Seconds())),
		},
		topics: map[emg.Arm]string{
			emg.Left:  cfg.TopicEMGLeft,
			emg.Right: cfg.TopicEMGRight,
		},
	}
}

// Publish sends one frame per arm for the elapsed time t.
func (p *MockProducer) Publish(t float64) {
	for _, arm := range []emg.Arm{emg.Left, emg.Right} {
		publishFrame(p.pub, p.topics[arm], p.bands[arm].Frame(t))
	}
}

// Run publishes until ctx is done.
func (p *MockProducer) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.period)
	defer ticker.Stop()
	start := p.clock.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C():
			p.Publish(t.Sub(start).Seconds())
		}
	}
}

// RunMockProducer publishes synthetic envelope frames to MQTT, for running
// the controller without band hardware.
func RunMockProducer(cfg *config.Config) error {
	client, err := connectMQTT("mock producer", cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hold := millis(cfg.CaptureDuration)
	p := NewMockProducer(cfg, timeutil.RealClock{}, &mqttPublisher{client: client}, hold)
	log.Printf("mock producer: publishing every %v, gesture hold %v", p.period, hold)

	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Println("mock producer: shutting down")
	return nil
}
