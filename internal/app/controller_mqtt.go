// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/emg_steering/internal/config"
	"github.com/relabs-tech/emg_steering/internal/emg"
	"github.com/relabs-tech/emg_steering/internal/sensors"
	"github.com/relabs-tech/emg_steering/internal/timeutil"
)

// RunController subscribes to both arm frame topics and the command topic,
// runs the control loop and publishes axes, calibration events and session
// state until SIGINT/SIGTERM.
func RunController(cfg *config.Config, startCalibration bool) error {
	pub := &mqttPublisher{
		retained: map[string]bool{
			cfg.TopicCalibration: true,
			cfg.TopicSession:     true,
		},
	}

	opts := ControllerOptionsFromConfig(cfg)
	opts.StartCalibration = startCalibration
	ctrl := NewController(opts, timeutil.RealClock{}, pub)
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Printf("controller: %v", err)
		}
	}()

	var subs []mqttSub
	for topic, arm := range map[string]emg.Arm{cfg.TopicEMGLeft: emg.Left, cfg.TopicEMGRight: emg.Right} {
		subs = append(subs, mqttSub{topic: topic, handler: func(_ mqtt.Client, msg mqtt.Message) {
			f, err := sensors.DecodeFrame(msg.Payload(), arm)
			if err != nil {
				log.Printf("controller: %v", err)
				return
			}
			if !ctrl.EnqueueFrame(f) {
				log.Printf("controller: frame queue full, dropping %s frame t=%.3f (total dropped: %d)", arm, f.Timestamp, ctrl.Dropped())
			}
		}})
	}
	subs = append(subs, mqttSub{topic: cfg.TopicCommand, handler: func(_ mqtt.Client, msg mqtt.Message) {
		var cmd Command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			log.Printf("controller: command unmarshal error: %v", err)
			return
		}
		if !ctrl.EnqueueCommand(cmd) {
			log.Printf("controller: command queue full, dropping %q", cmd.Action)
		}
	}})

	client, err := connectMQTT("controller", cfg.MQTTBroker, cfg.MQTTClientIDController, subs...)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub.client = client

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if startCalibration {
		log.Println("controller: starting calibration")
	} else {
		log.Printf("controller: waiting for a start command on %s", cfg.TopicCommand)
	}

	err = ctrl.Run(ctx)
	log.Println("controller: shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
