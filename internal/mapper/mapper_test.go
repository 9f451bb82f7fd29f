// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mapper

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_steering/internal/calibration"
	"github.com/relabs-tech/emg_steering/internal/emg"
)

type fakeCalibration struct {
	calibrated bool
	assign     calibration.Assignment
	ranges     map[calibration.Direction]calibration.Range
}

func (f *fakeCalibration) IsCalibrated() bool { return f.calibrated }

func (f *fakeCalibration) Assignment() calibration.Assignment {
	if !f.calibrated {
		return calibration.Unassigned()
	}
	return f.assign
}

func (f *fakeCalibration) Range(d calibration.Direction) calibration.Range {
	if !f.calibrated {
		return calibration.Range{}
	}
	return f.ranges[d]
}

// Right: up=0, down=1. Left: left=2, right=3.
func calibrated() *fakeCalibration {
	return &fakeCalibration{
		calibrated: true,
		assign:     calibration.Assignment{RightUp: 0, RightDown: 1, LeftLeft: 2, LeftRight: 3},
	}
}

func frame(vals ...float64) emg.Frame {
	var f emg.Frame
	copy(f.Values[:], vals)
	return f
}

func unsmoothed() Options {
	opts := DefaultOptions()
	opts.Smoothing = 1
	return opts
}

func TestMapper_ZeroBeforeCalibration(t *testing.T) {
	cal := &fakeCalibration{}
	m := New(cal, unsmoothed())
	m.HandleFrame(emg.Right, frame(1, 0))
	m.HandleFrame(emg.Left, frame(0, 0, 0, 1))

	assert.Equal(t, Axes{}, m.Axes())
	assert.Equal(t, 0.0, m.HorizontalInput())
	assert.Equal(t, 0.0, m.VerticalInput())
	assert.Equal(t, 0.0, m.ForwardInput())
}

func TestMapper_DirectionalDelta(t *testing.T) {
	m := New(calibrated(), unsmoothed())

	m.HandleFrame(emg.Right, frame(0.8, 0.2))
	assert.InDelta(t, 6.0, m.VerticalInput(), 1e-9)
	assert.InDelta(t, 5.0, m.ForwardInput(), 1e-9)

	m.HandleFrame(emg.Left, frame(0, 0, 0.9, 0.1))
	assert.InDelta(t, -8.0, m.HorizontalInput(), 1e-9, "left channel dominant steers negative")
	assert.InDelta(t, 5.0, m.ForwardInput(), 1e-9, "forward averages both arms")
}

func TestMapper_SmoothingApproachesTarget(t *testing.T) {
	opts := DefaultOptions()
	opts.Smoothing = 0.5
	m := New(calibrated(), opts)

	m.HandleFrame(emg.Right, frame(1, 0))
	assert.InDelta(t, 5.0, m.VerticalInput(), 1e-9)
	m.HandleFrame(emg.Right, frame(1, 0))
	assert.InDelta(t, 7.5, m.VerticalInput(), 1e-9)

	prev := m.VerticalInput()
	for i := 0; i < 50; i++ {
		m.HandleFrame(emg.Right, frame(1, 0))
		require.GreaterOrEqual(t, m.VerticalInput(), prev)
		prev = m.VerticalInput()
	}
	assert.InDelta(t, 10.0, prev, 1e-6)
}

func TestMapper_DeadZoneIsExactlyZero(t *testing.T) {
	opts := DefaultOptions()
	opts.DeadZone = 0.1
	m := New(calibrated(), opts)

	for i := 0; i < 20; i++ {
		m.HandleFrame(emg.Right, frame(1, 0))
	}
	require.Greater(t, m.VerticalInput(), 5.0)

	for i := 0; i < 20; i++ {
		m.HandleFrame(emg.Right, frame(0.55, 0.5))
		assert.Equal(t, 0.0, m.VerticalInput(), "tick %d", i)
	}
}

func TestMapper_RawDeadZoneIgnoresGain(t *testing.T) {
	opts := unsmoothed()
	opts.DeadZone = 0.1
	opts.DeadZoneMode = DeadZoneRaw
	opts.Gains = map[calibration.Direction]float64{calibration.RightUp: 4}
	m := New(calibrated(), opts)

	// Raw delta 0.05 is inside the zone even though the gained delta is 0.8.
	m.HandleFrame(emg.Right, frame(0.25, 0.2))
	assert.Equal(t, 0.0, m.VerticalInput())

	scaled := unsmoothed()
	scaled.DeadZone = 0.1
	scaled.Gains = opts.Gains
	m2 := New(calibrated(), scaled)
	m2.HandleFrame(emg.Right, frame(0.25, 0.2))
	assert.InDelta(t, 8.0, m2.VerticalInput(), 1e-9)
}

func TestMapper_GainAndNormalization(t *testing.T) {
	opts := unsmoothed()
	opts.Gains = map[calibration.Direction]float64{calibration.RightUp: 2, calibration.RightDown: -1}
	m := New(calibrated(), opts)
	m.HandleFrame(emg.Right, frame(0.3, 0))
	assert.InDelta(t, 6.0, m.VerticalInput(), 1e-9)

	opts = unsmoothed()
	opts.NormalizeMax = 0.5
	m = New(calibrated(), opts)
	m.HandleFrame(emg.Right, frame(0.2, 0))
	assert.InDelta(t, 4.0, m.VerticalInput(), 1e-9)
}

func TestMapper_GainAboveOneKeepsDirection(t *testing.T) {
	opts := unsmoothed()
	opts.Gains = map[calibration.Direction]float64{calibration.LeftLeft: 4, calibration.LeftRight: 4}
	m := New(calibrated(), opts)

	for _, tc := range []struct {
		left, right float64
		want        float64
	}{
		{left: 0.3, right: 0.5, want: 8},
		{left: 0.3, right: 0.9, want: 10},
		{left: 0.6, right: 0.9, want: 10},
		{left: 0.5, right: 0.3, want: -8},
		{left: 0.9, right: 0.6, want: -10},
	} {
		m.HandleFrame(emg.Left, frame(0, 0, tc.left, tc.right))
		assert.InDelta(t, tc.want, m.HorizontalInput(), 1e-9, "left=%g right=%g", tc.left, tc.right)
		assert.InDelta(t, 10.0, m.ForwardInput(), 1e-9, "forward saturates at MaxSpeed")
	}
}

func TestMapper_NormalizeMaxBelowOneWithBothChannels(t *testing.T) {
	opts := unsmoothed()
	opts.NormalizeMax = 0.5
	m := New(calibrated(), opts)

	m.HandleFrame(emg.Right, frame(0.2, 0.4))
	assert.InDelta(t, -4.0, m.VerticalInput(), 1e-9)
	assert.InDelta(t, 6.0, m.ForwardInput(), 1e-9)

	m.HandleFrame(emg.Right, frame(0.9, 0.6))
	assert.InDelta(t, 6.0, m.VerticalInput(), 1e-9)
	assert.InDelta(t, 10.0, m.ForwardInput(), 1e-9)
}

func TestMapper_CalibratedNormalization(t *testing.T) {
	cal := calibrated()
	cal.ranges = map[calibration.Direction]calibration.Range{
		calibration.RightUp:   {Min: 0.1, Max: 0.5},
		calibration.RightDown: {Min: 0.2, Max: 0.2},
	}
	opts := unsmoothed()
	opts.NormalizeMode = NormalizeCalibrated
	opts.NormalizeMax = 0.25
	m := New(cal, opts)

	m.HandleFrame(emg.Right, frame(0.3, 0.9))
	assert.InDelta(t, 5.0, m.VerticalInput(), 1e-9, "up spans 0.1..0.5, down has no usable span")

	m.HandleFrame(emg.Right, frame(0.7, 0))
	assert.InDelta(t, 10.0, m.VerticalInput(), 1e-9)

	m.HandleFrame(emg.Right, frame(0.05, 0))
	assert.Equal(t, 0.0, m.VerticalInput(), "below the span reads as rest")

	cal.ranges[calibration.RightDown] = calibration.Range{Min: 0, Max: 0.4}
	m.HandleFrame(emg.Right, frame(0.1, 0.2))
	assert.InDelta(t, -5.0, m.VerticalInput(), 1e-9)
}

func TestMapper_ClampsSensorArtifacts(t *testing.T) {
	m := New(calibrated(), unsmoothed())
	m.HandleFrame(emg.Right, frame(7, -3))
	assert.InDelta(t, 10.0, m.VerticalInput(), 1e-9)

	m.HandleFrame(emg.Right, frame(math.NaN(), 1))
	assert.InDelta(t, -10.0, m.VerticalInput(), 1e-9, "NaN reads as 0")
	assert.False(t, math.IsNaN(m.ForwardInput()))

	m.HandleFrame(emg.Right, frame(math.Inf(1), 0))
	assert.Equal(t, 0.0, m.VerticalInput(), "non-finite samples read as 0")
}

func TestMapper_OutputAlwaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 20; trial++ {
		opts := Options{
			MaxSpeed:     rng.Float64()*20 + 0.1,
			Smoothing:    rng.Float64(),
			DeadZone:     rng.Float64() * 0.2,
			NormalizeMax: rng.Float64()*2 + 0.01,
			Gains: map[calibration.Direction]float64{
				calibration.RightUp:   rng.Float64() * 5,
				calibration.LeftRight: rng.Float64() * 5,
			},
		}
		if trial%2 == 0 {
			opts.DeadZoneMode = DeadZoneRaw
		}
		cal := calibrated()
		if trial%3 == 0 {
			opts.NormalizeMode = NormalizeCalibrated
			cal.ranges = map[calibration.Direction]calibration.Range{
				calibration.RightUp:   {Min: 0, Max: rng.Float64() + 0.01},
				calibration.RightDown: {Min: 0.1, Max: 0.2},
				calibration.LeftRight: {Min: 0.3, Max: 0.3},
			}
		}
		m := New(cal, opts)
		bound := m.MaxSpeed()
		for i := 0; i < 200; i++ {
			var f emg.Frame
			for c := range f.Values {
				f.Values[c] = rng.NormFloat64() * 3
			}
			arm := emg.Left
			if i%2 == 0 {
				arm = emg.Right
			}
			m.HandleFrame(arm, f)
			a := m.Axes()
			require.LessOrEqual(t, math.Abs(a.Horizontal), bound)
			require.LessOrEqual(t, math.Abs(a.Vertical), bound)
			require.GreaterOrEqual(t, a.Forward, 0.0)
			require.LessOrEqual(t, a.Forward, bound)
		}
	}
}

func TestMapper_ResetsWhenCalibrationLost(t *testing.T) {
	cal := calibrated()
	m := New(cal, unsmoothed())
	m.HandleFrame(emg.Right, frame(1, 0))
	require.NotZero(t, m.VerticalInput())

	cal.calibrated = false
	assert.Equal(t, Axes{}, m.Axes())
	m.HandleFrame(emg.Right, frame(1, 0))

	cal.calibrated = true
	assert.Equal(t, Axes{}, m.Axes(), "state was cleared while uncalibrated")
}

func TestMapper_AttachAndRelease(t *testing.T) {
	left, right := emg.NewBus(emg.Left), emg.NewBus(emg.Right)
	m := New(calibrated(), unsmoothed())
	g := m.Attach(left, right)

	right.Publish(frame(1, 0))
	assert.InDelta(t, 10.0, m.VerticalInput(), 1e-9)

	require.NoError(t, g.Close())
	right.Publish(frame(0, 1))
	assert.InDelta(t, 10.0, m.VerticalInput(), 1e-9)
	assert.Equal(t, 0, right.Len())
}

func TestNew_SanitizesOptions(t *testing.T) {
	m := New(calibrated(), Options{MaxSpeed: -1, Smoothing: 3, DeadZone: -1, NormalizeMax: 0, DeadZoneMode: "weird", NormalizeMode: "odd"})
	assert.Equal(t, 10.0, m.opts.MaxSpeed)
	assert.Equal(t, 0.1, m.opts.Smoothing)
	assert.Equal(t, 0.0, m.opts.DeadZone)
	assert.Equal(t, 1.0, m.opts.NormalizeMax)
	assert.Equal(t, DeadZoneScaled, m.opts.DeadZoneMode)
	assert.Equal(t, NormalizeFixed, m.opts.NormalizeMode)
}
