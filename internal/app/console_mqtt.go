// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/emg_steering/internal/calibration"
	"github.com/relabs-tech/emg_steering/internal/config"
	"github.com/relabs-tech/emg_steering/internal/session"
)

func formatAxes(a AxesMessage) string {
	state := "uncalibrated"
	switch {
	case a.Calibrated:
		state = "calibrated"
	case a.Phase.Capturing():
		state = fmt.Sprintf("calibrating %s %3.0f%%", a.Phase, a.Progress*100)
	}
	return fmt.Sprintf("[AXES] H=%7.2f  V=%7.2f  F=%7.2f  (%s)", a.Horizontal, a.Vertical, a.Forward, state)
}

func formatEvent(e calibration.Event) string {
	switch e.Type {
	case calibration.EventPhaseStarted:
		return fmt.Sprintf("[CAL ] %s: %s", e.Phase, e.Reason)
	case calibration.EventPhaseDone:
		return fmt.Sprintf("[CAL ] %s resolved to channel %d", e.Phase, e.Channel)
	case calibration.EventCollisionResolved:
		return fmt.Sprintf("[CAL ] %s: %s, using channel %d", e.Phase, e.Reason, e.Channel)
	case calibration.EventFailed:
		return fmt.Sprintf("[CAL ] FAILED in %s: %s", e.FailedPhase, e.Reason)
	case calibration.EventCompleted:
		a := e.Assignment
		return fmt.Sprintf("[CAL ] completed: right up=%d down=%d  left left=%d right=%d",
			a.RightUp, a.RightDown, a.LeftLeft, a.LeftRight)
	default:
		return fmt.Sprintf("[CAL ] %s: %s", e.Type, e.Reason)
	}
}

func formatSession(s session.Snapshot) string {
	state := "stopped"
	switch {
	case s.Over:
		state = "GAME OVER"
	case s.Running:
		state = "running"
	}
	return fmt.Sprintf("[GAME] score=%d  time=%s  %s", s.Score, s.Clock, state)
}

// RunConsoleMQTT prints controller output until Ctrl+C.
func RunConsoleMQTT(cfg *config.Config, showAxes bool) error {
	var subs []mqttSub
	if showAxes {
		subs = append(subs, mqttSub{topic: cfg.TopicAxes, handler: func(_ mqtt.Client, msg mqtt.Message) {
			var a AxesMessage
			if err := json.Unmarshal(msg.Payload(), &a); err != nil {
				log.Printf("console: axes unmarshal error: %v", err)
				return
			}
			fmt.Println(formatAxes(a))
		}})
	}
	subs = append(subs, mqttSub{topic: cfg.TopicCalibration, handler: func(_ mqtt.Client, msg mqtt.Message) {
		var e calibration.Event
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("console: calibration unmarshal error: %v", err)
			return
		}
		fmt.Println(formatEvent(e))
	}})
	subs = append(subs, mqttSub{topic: cfg.TopicSession, handler: func(_ mqtt.Client, msg mqtt.Message) {
		var s session.Snapshot
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: session unmarshal error: %v", err)
			return
		}
		fmt.Println(formatSession(s))
	}})

	client, err := connectMQTT("console", cfg.MQTTBroker, cfg.MQTTClientIDConsole, subs...)
	if err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
