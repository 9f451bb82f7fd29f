// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/emg_steering/internal/config"
	"github.com/relabs-tech/emg_steering/internal/emg"
	"github.com/relabs-tech/emg_steering/internal/sensors"
	"github.com/relabs-tech/emg_steering/internal/timeutil"
)

func TestBandPorts(t *testing.T) {
	cfg := config.Default()
	assert.Empty(t, bandPorts(cfg))

	cfg.EMGRightSerialPort = "/dev/ttyUSB1"
	ports := bandPorts(cfg)
	require.Len(t, ports, 1)
	assert.Equal(t, bandPort{arm: emg.Right, port: "/dev/ttyUSB1", topic: cfg.TopicEMGRight}, ports[0])
}

func TestMockProducer_PublishesBothArms(t *testing.T) {
	cfg := config.Default()
	pub := &capturePublisher{}
	p := NewMockProducer(cfg, timeutil.NewMockClock(time.Now()), pub, time.Second)

	p.Publish(0.5) // right arm first gesture, left arm resting
	p.Publish(2.5) // right arm resting, left arm first gesture

	left := pub.on(cfg.TopicEMGLeft)
	right := pub.on(cfg.TopicEMGRight)
	require.Len(t, left, 2)
	require.Len(t, right, 2)

	rf, err := sensors.DecodeFrame(right[0], emg.Right)
	require.NoError(t, err)
	lf, err := sensors.DecodeFrame(left[1], emg.Left)
	require.NoError(t, err)
	assert.Equal(t, 0.5, rf.Timestamp)
	assert.Equal(t, 2.5, lf.Timestamp)
	assert.Equal(t, 2, floats.MaxIdx(rf.Values[:]))
	assert.Equal(t, 1, floats.MaxIdx(lf.Values[:]))
}

func TestMockProducer_RunTicksOnClock(t *testing.T) {
	cfg := config.Default()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	pub := &capturePublisher{}
	p := NewMockProducer(cfg, clock, pub, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		clock.Advance(millis(cfg.MockFrameInterval))
		return len(pub.on(cfg.TopicEMGRight)) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
