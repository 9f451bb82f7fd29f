// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/emg_steering/internal/emg"
)

// Gesture is one step of a mock band script: Channel (or -1 for rest) is
// driven to Level for Duration seconds.
type Gesture struct {
	Channel  int
	Level    float64
	Duration float64
}

// MockBand generates smooth synthetic envelopes that follow a looping
// gesture script. The crosstalk pattern spreads part of the active
// channel's energy onto its neighbours, like a real band.
type MockBand struct {
	arm    emg.Arm
	script []Gesture
	period float64
}

// DefaultScript returns a script that performs the two calibration
// gestures of arm in calibration order, holding each for hold seconds, and
// rests while the other arm calibrates.
func DefaultScript(arm emg.Arm, hold float64) []Gesture {
	rest := Gesture{Channel: -1, Duration: hold}
	if arm == emg.Left {
		return []Gesture{rest, rest,
			{Channel: 1, Level: 0.8, Duration: hold},
			{Channel: 6, Level: 0.7, Duration: hold},
		}
	}
	return []Gesture{
		{Channel: 2, Level: 0.8, Duration: hold},
		{Channel: 5, Level: 0.7, Duration: hold},
		rest, rest,
	}
}

// NewMockBand creates a mock band for arm following script.
func NewMockBand(arm emg.Arm, script []Gesture) *MockBand {
	period := 0.0
	for _, g := range script {
		period += g.Duration
	}
	return &MockBand{arm: arm, script: script, period: period}
}

// Gesture returns the script step active at t seconds.
func (m *MockBand) Gesture(t float64) Gesture {
	if m.period <= 0 {
		return Gesture{Channel: -1}
	}
	pos := math.Mod(t, m.period)
	if pos < 0 {
		pos += m.period
	}
	for _, g := range m.script {
		if pos < g.Duration {
			return g
		}
		pos -= g.Duration
	}
	return m.script[len(m.script)-1]
}

// Frame returns the synthetic frame at t seconds.
func (m *MockBand) Frame(t float64) emg.Frame {
	f := emg.Frame{Source: m.arm, Timestamp: t}
	vals := f.Values[:]

	// resting tone with a slow per-channel ripple
	for i := range vals {
		vals[i] = 0.03 + 0.02*math.Sin(t*1.3+float64(i))
	}

	g := m.Gesture(t)
	if g.Channel >= 0 && g.Channel < emg.Channels {
		var pattern [emg.Channels]float64
		pattern[g.Channel] = 1
		pattern[(g.Channel+1)%emg.Channels] = 0.3
		pattern[(g.Channel+emg.Channels-1)%emg.Channels] = 0.3
		tremor := 1 + 0.05*math.Sin(t*9)
		floats.Scale(g.Level*tremor, pattern[:])
		floats.Add(vals, pattern[:])
	}
	return f
}
