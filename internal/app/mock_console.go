// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/emg_steering/internal/calibration"
	"github.com/relabs-tech/emg_steering/internal/config"
	"github.com/relabs-tech/emg_steering/internal/emg"
	"github.com/relabs-tech/emg_steering/internal/sensors"
	"github.com/relabs-tech/emg_steering/internal/session"
	"github.com/relabs-tech/emg_steering/internal/timeutil"
)

// consolePublisher prints controller output instead of sending it. Only
// every axesEvery-th axes message is printed.
type consolePublisher struct {
	out       io.Writer
	topics    Topics
	axesEvery int
	axesSeen  int
}

func (p *consolePublisher) Publish(topic string, payload []byte) error {
	var line string
	switch topic {
	case p.topics.Axes:
		p.axesSeen++
		if p.axesEvery > 1 && p.axesSeen%p.axesEvery != 0 {
			return nil
		}
		var a AxesMessage
		if err := json.Unmarshal(payload, &a); err != nil {
			return err
		}
		line = formatAxes(a)
	case p.topics.Calibration:
		var e calibration.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		line = formatEvent(e)
	case p.topics.Session:
		var s session.Snapshot
		if err := json.Unmarshal(payload, &s); err != nil {
			return err
		}
		line = formatSession(s)
	default:
		return nil
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}

// RunMockConsole runs the whole pipeline in one process against synthetic
// bands, starting a calibration run immediately and printing events and
// axes. No broker is needed.
func RunMockConsole(cfg *config.Config) error {
	opts := ControllerOptionsFromConfig(cfg)
	opts.StartCalibration = true

	// roughly five axes lines per second
	every := int(200 * time.Millisecond / opts.TickInterval)
	pub := &consolePublisher{out: os.Stdout, topics: opts.Topics, axesEvery: every}

	clock := timeutil.RealClock{}
	ctrl := NewController(opts, clock, pub)
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hold := millis(cfg.CaptureDuration).Seconds()
	bands := []*sensors.MockBand{
		sensors.NewMockBand(emg.Left, sensors.DefaultScript(emg.Left, hold)),
		sensors.NewMockBand(emg.Right, sensors.DefaultScript(emg.Right, hold)),
	}
	go func() {
		ticker := clock.NewTicker(millis(cfg.MockFrameInterval))
		defer ticker.Stop()
		start := clock.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C():
				for _, b := range bands {
					ctrl.EnqueueFrame(b.Frame(t.Sub(start).Seconds()))
				}
			}
		}
	}()

	if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
