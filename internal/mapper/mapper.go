// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mapper turns live envelope frames into steering axes using the
// channel assignment produced by calibration.
//
// Right arm up/down drives the vertical axis, left arm left/right drives
// the horizontal axis, and the average activation of both arms drives the
// forward (throttle) axis. Every axis is clamped, dead-zoned and smoothed
// with an exponential filter so it stays within [-MaxSpeed, MaxSpeed]
// (forward within [0, MaxSpeed]).
package mapper

import (
	"math"

	"github.com/relabs-tech/emg_steering/internal/calibration"
	"github.com/relabs-tech/emg_steering/internal/emg"
)

// DeadZoneMode selects which delta the dead zone threshold is compared to.
type DeadZoneMode string

const (
	// DeadZoneScaled compares against the delta after gain and
	// normalization.
	DeadZoneScaled DeadZoneMode = "scaled"
	// DeadZoneRaw compares against the clamped channel values before gain
	// and normalization.
	DeadZoneRaw DeadZoneMode = "raw"
)

// NormalizeMode selects how a clamped channel value is scaled before gain.
type NormalizeMode string

const (
	// NormalizeFixed divides by Options.NormalizeMax.
	NormalizeFixed NormalizeMode = "fixed"
	// NormalizeCalibrated maps each direction across the span its channel
	// covered during that direction's capture window.
	NormalizeCalibrated NormalizeMode = "calibrated"
)

// Options configures the transform.
type Options struct {
	MaxSpeed      float64
	Smoothing     float64 // per-frame interpolation factor in (0, 1]; 1 disables smoothing
	DeadZone      float64
	DeadZoneMode  DeadZoneMode
	NormalizeMode NormalizeMode
	NormalizeMax  float64
	Gains         map[calibration.Direction]float64
}

// DefaultOptions returns MaxSpeed 10, smoothing 0.1, dead zone 0.05 and
// no gain or normalization.
func DefaultOptions() Options {
	return Options{
		MaxSpeed:      10,
		Smoothing:     0.1,
		DeadZone:      0.05,
		DeadZoneMode:  DeadZoneScaled,
		NormalizeMode: NormalizeFixed,
		NormalizeMax:  1,
	}
}

// Axes is the latest control output.
type Axes struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
	Forward    float64 `json:"forward"`
}

// AssignmentSource provides the channel assignment and the per-direction
// capture spans. *calibration.Calibrator implements it.
type AssignmentSource interface {
	IsCalibrated() bool
	Assignment() calibration.Assignment
	Range(d calibration.Direction) calibration.Range
}

// Mapper computes Axes from frames. Like the calibrator it is owned by a
// single goroutine.
type Mapper struct {
	opts Options
	cal  AssignmentSource
	axes Axes

	magnitude [2]float64 // left, right
	reported  [2]bool
}

// New returns a Mapper reading assignments from cal. Out-of-range options
// fall back to their defaults.
func New(cal AssignmentSource, opts Options) *Mapper {
	def := DefaultOptions()
	if !(opts.MaxSpeed > 0) || math.IsInf(opts.MaxSpeed, 0) {
		opts.MaxSpeed = def.MaxSpeed
	}
	if !(opts.Smoothing > 0 && opts.Smoothing <= 1) {
		opts.Smoothing = def.Smoothing
	}
	if !(opts.DeadZone >= 0) {
		opts.DeadZone = 0
	}
	if opts.DeadZoneMode != DeadZoneRaw {
		opts.DeadZoneMode = DeadZoneScaled
	}
	if opts.NormalizeMode != NormalizeCalibrated {
		opts.NormalizeMode = NormalizeFixed
	}
	if !(opts.NormalizeMax > 0) {
		opts.NormalizeMax = def.NormalizeMax
	}
	return &Mapper{opts: opts, cal: cal}
}

// Attach subscribes the Mapper to both arm sources. The caller must Close
// the returned group on teardown.
func (m *Mapper) Attach(left, right emg.Source) *emg.Group {
	g := &emg.Group{}
	g.Add(left, func(f emg.Frame) { m.HandleFrame(emg.Left, f) })
	g.Add(right, func(f emg.Frame) { m.HandleFrame(emg.Right, f) })
	return g
}

// HandleFrame updates the axes driven by arm. Before calibration completes
// every axis is held at 0.
func (m *Mapper) HandleFrame(arm emg.Arm, f emg.Frame) {
	if m.cal == nil || !m.cal.IsCalibrated() {
		m.Reset()
		return
	}
	a := m.cal.Assignment()

	switch arm {
	case emg.Right:
		delta, mag, dead := m.pair(f, a, calibration.RightUp, calibration.RightDown)
		m.axes.Vertical = m.smooth(m.axes.Vertical, delta, dead)
		m.magnitude[1], m.reported[1] = mag, true
	case emg.Left:
		delta, mag, dead := m.pair(f, a, calibration.LeftRight, calibration.LeftLeft)
		m.axes.Horizontal = m.smooth(m.axes.Horizontal, delta, dead)
		m.magnitude[0], m.reported[0] = mag, true
	default:
		return
	}

	var sum float64
	var n int
	for i, ok := range m.reported {
		if ok {
			sum += m.magnitude[i]
			n++
		}
	}
	mean := clamp01(sum / float64(n))
	m.axes.Forward = math.Max(0, m.smooth(m.axes.Forward, mean, mean < m.opts.DeadZone))
}

// pair returns the positive-minus-negative delta and the mean activation
// of one directional pair after gain, and whether the delta falls inside
// the dead zone. With gain above 1 either may exceed 1; smooth bounds the
// axes.
func (m *Mapper) pair(f emg.Frame, a calibration.Assignment, pos, neg calibration.Direction) (delta, magnitude float64, dead bool) {
	rawPos := clamp01(sample(f, a.Channel(pos)))
	rawNeg := clamp01(sample(f, a.Channel(neg)))
	p := m.scale(rawPos, pos) * m.gain(pos)
	n := m.scale(rawNeg, neg) * m.gain(neg)

	delta = p - n
	magnitude = (p + n) / 2
	if m.opts.DeadZoneMode == DeadZoneRaw {
		dead = math.Abs(rawPos-rawNeg) < m.opts.DeadZone
	} else {
		dead = math.Abs(delta) < m.opts.DeadZone
	}
	return delta, magnitude, dead
}

func (m *Mapper) scale(v float64, d calibration.Direction) float64 {
	if m.opts.NormalizeMode == NormalizeCalibrated {
		return m.cal.Range(d).Normalize(v)
	}
	return v / m.opts.NormalizeMax
}

func (m *Mapper) gain(d calibration.Direction) float64 {
	if g, ok := m.opts.Gains[d]; ok && g > 0 && !math.IsInf(g, 0) {
		return g
	}
	return 1
}

// smooth moves cur toward target*MaxSpeed, capped at ±MaxSpeed. Inside
// the dead zone the axis is exactly 0.
func (m *Mapper) smooth(cur, target float64, dead bool) float64 {
	if dead {
		return 0
	}
	goal := clampAbs(target*m.opts.MaxSpeed, m.opts.MaxSpeed)
	next := cur + (goal-cur)*m.opts.Smoothing
	if math.IsNaN(next) {
		return 0
	}
	return clampAbs(next, m.opts.MaxSpeed)
}

func clampAbs(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// Reset zeroes every axis and forgets per-arm activation.
func (m *Mapper) Reset() {
	m.axes = Axes{}
	m.magnitude = [2]float64{}
	m.reported = [2]bool{}
}

// Axes returns the latest axes, or zero before calibration completes.
func (m *Mapper) Axes() Axes {
	if m.cal == nil || !m.cal.IsCalibrated() {
		return Axes{}
	}
	return m.axes
}

// HorizontalInput returns the smoothed left/right axis.
func (m *Mapper) HorizontalInput() float64 { return m.Axes().Horizontal }

// VerticalInput returns the smoothed up/down axis.
func (m *Mapper) VerticalInput() float64 { return m.Axes().Vertical }

// ForwardInput returns the smoothed throttle axis.
func (m *Mapper) ForwardInput() float64 { return m.Axes().Forward }

// MaxSpeed returns the configured output bound.
func (m *Mapper) MaxSpeed() float64 { return m.opts.MaxSpeed }

func sample(f emg.Frame, ch int) float64 {
	if ch < 0 || ch >= emg.Channels || !f.Finite(ch) {
		return 0
	}
	return f.Values[ch]
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
