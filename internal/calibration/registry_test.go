// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_steering/internal/emg"
)

func frameOf(arm emg.Arm, vals ...float64) emg.Frame {
	f := emg.Frame{Source: arm}
	copy(f.Values[:], vals)
	return f
}

func TestRegistry_PrimaryOnResetIsInvalid(t *testing.T) {
	for _, policy := range []SentinelPolicy{SentinelNegInf, SentinelZero} {
		r := NewRegistry(policy)
		assert.Equal(t, InvalidChannel, r.PrimaryChannel(), policy.String())
		r.Begin()
		assert.Equal(t, InvalidChannel, r.PrimaryChannel(), policy.String())
		assert.Equal(t, InvalidChannel, r.SecondaryChannel(0), policy.String())
	}
}

func TestRegistry_UpdateIgnoredOutsideWindow(t *testing.T) {
	r := NewRegistry(SentinelNegInf)
	r.Update(frameOf(emg.Right, 0, 0, 1))
	assert.Equal(t, InvalidChannel, r.PrimaryChannel())
	assert.Equal(t, 0, r.Samples())

	r.Begin()
	r.Update(frameOf(emg.Right, 0, 0, 1))
	r.End()
	r.Update(frameOf(emg.Right, 0, 0, 0, 0, 0, 0, 0, 9))
	assert.Equal(t, 2, r.PrimaryChannel())
	assert.Equal(t, 1, r.Samples())
}

func TestRegistry_RunningMaxIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := NewRegistry(SentinelNegInf)
	r.Begin()
	for n := 0; n < 500; n++ {
		prev := r.Max()
		var f emg.Frame
		for i := range f.Values {
			f.Values[i] = rng.Float64() * 2
		}
		r.Update(f)
		got := r.Max()
		for i := 0; i < emg.Channels; i++ {
			require.GreaterOrEqual(t, got[i], prev[i], "channel %d decreased", i)
			require.GreaterOrEqual(t, got[i], f.Values[i], "channel %d below sample", i)
		}
	}
}

func TestRegistry_SustainedSingleChannel(t *testing.T) {
	r := NewRegistry(SentinelNegInf)
	r.Begin()
	for n := 0; n < 250; n++ {
		r.Update(frameOf(emg.Left, 0, 0, 1, 0, 0, 0, 0, 0))
	}
	assert.Equal(t, 2, r.PrimaryChannel())
}

func TestRegistry_TieBreaksToLowestIndex(t *testing.T) {
	r := NewRegistry(SentinelNegInf)
	r.Begin()
	r.Update(frameOf(emg.Left, 0, 0.5, 0, 0.7, 0, 0.7, 0, 0))
	assert.Equal(t, 3, r.PrimaryChannel())
	assert.Equal(t, 5, r.SecondaryChannel(3))
	assert.Equal(t, 3, r.SecondaryChannel(5))
	for i := 0; i < 10; i++ {
		assert.Equal(t, 3, r.PrimaryChannel(), "selection must be stable")
	}
}

func TestRegistry_SecondaryExcludesClaimedChannel(t *testing.T) {
	r := NewRegistry(SentinelNegInf)
	r.Begin()
	r.Update(frameOf(emg.Right, 0.1, 0.2, 0.1, 0.9, 0.1, 0.6, 0.3, 0.1))
	assert.Equal(t, 3, r.PrimaryChannel())
	assert.Equal(t, 5, r.SecondaryChannel(3))
	assert.Equal(t, 3, r.SecondaryChannel(InvalidChannel))
	assert.Equal(t, 3, r.SecondaryChannel(99))
}

func TestRegistry_ZeroSentinelTreatsFlatChannelsAsNoData(t *testing.T) {
	r := NewRegistry(SentinelZero)
	r.Begin()
	r.Update(frameOf(emg.Right))
	assert.Equal(t, InvalidChannel, r.PrimaryChannel())

	r.Update(frameOf(emg.Right, 0, 0, 0, 0.4))
	assert.Equal(t, 3, r.PrimaryChannel())
	assert.Equal(t, InvalidChannel, r.SecondaryChannel(3))

	neg := NewRegistry(SentinelNegInf)
	neg.Begin()
	neg.Update(frameOf(emg.Right))
	assert.Equal(t, 0, neg.PrimaryChannel(), "with -Inf sentinel a zero sample is data")
}

func TestRegistry_SkipsNonFiniteSamples(t *testing.T) {
	r := NewRegistry(SentinelNegInf)
	r.Begin()
	r.Update(frameOf(emg.Left, math.NaN(), math.Inf(1), 0.2))
	assert.Equal(t, 2, r.PrimaryChannel())
	m := r.Max()
	assert.True(t, math.IsInf(m[0], -1))
	assert.True(t, math.IsInf(m[1], -1))
}

func TestRegistry_ResetAndReplayIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	frames := make([]emg.Frame, 100)
	for n := range frames {
		for i := range frames[n].Values {
			frames[n].Values[i] = rng.Float64()
		}
	}
	r := NewRegistry(SentinelNegInf)
	run := func() (int, int) {
		r.Begin()
		for _, f := range frames {
			r.Update(f)
		}
		r.End()
		p := r.PrimaryChannel()
		return p, r.SecondaryChannel(p)
	}
	p1, s1 := run()
	p2, s2 := run()
	assert.Equal(t, p1, p2)
	assert.Equal(t, s1, s2)
}

func TestRegistry_Range(t *testing.T) {
	r := NewRegistry(SentinelNegInf)
	assert.False(t, r.Range(0).Valid(), "no data before a window")
	assert.Equal(t, 0.0, r.Range(0).Normalize(1))

	r.Begin()
	r.Update(frameOf(emg.Left, 0.2, 0.5, 0.3))
	r.Update(frameOf(emg.Left, 0.6, 0.5, 0.3))
	r.End()

	span := r.Range(0)
	assert.Equal(t, Range{Min: 0.2, Max: 0.6}, span)
	assert.InDelta(t, 0.5, span.Normalize(0.4), 1e-9)
	assert.Equal(t, 1.0, span.Normalize(2), "clamped to 1")
	assert.Equal(t, 0.0, span.Normalize(-1), "clamped to 0")
	assert.Equal(t, 0.0, span.Normalize(math.NaN()))

	assert.False(t, r.Range(1).Valid(), "zero span")
	assert.Equal(t, 0.0, r.Range(1).Normalize(0.5))
	assert.Equal(t, Range{}, r.Range(emg.Channels))
	assert.Equal(t, Range{}, r.Range(InvalidChannel))
}

func TestAssignment_Validate(t *testing.T) {
	require.NoError(t, Assignment{RightUp: 1, RightDown: 2, LeftLeft: 1, LeftRight: 2}.Validate())

	err := Unassigned().Validate()
	assert.ErrorIs(t, err, ErrInvalidChannel)

	err = Assignment{RightUp: 3, RightDown: 3, LeftLeft: 0, LeftRight: 1}.Validate()
	assert.ErrorIs(t, err, ErrChannelCollision)

	err = Assignment{RightUp: 3, RightDown: 4, LeftLeft: 6, LeftRight: 6}.Validate()
	assert.ErrorIs(t, err, ErrChannelCollision)

	assert.Equal(t, InvalidChannel, Assignment{}.Channel("bogus"))
}
