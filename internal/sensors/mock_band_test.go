// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/emg_steering/internal/emg"
)

func TestMockBand_FollowsScript(t *testing.T) {
	band := NewMockBand(emg.Right, DefaultScript(emg.Right, 2))

	// channel 2, channel 5, rest while the left arm calibrates, then loop
	assert.Equal(t, 2, band.Gesture(0.5).Channel)
	assert.Equal(t, 5, band.Gesture(2.5).Channel)
	assert.Equal(t, -1, band.Gesture(4.5).Channel)
	assert.Equal(t, -1, band.Gesture(6.5).Channel)
	assert.Equal(t, 2, band.Gesture(8.5).Channel)

	f := band.Frame(1)
	assert.Equal(t, emg.Right, f.Source)
	assert.Equal(t, 1.0, f.Timestamp)
	assert.Equal(t, 2, floats.MaxIdx(f.Values[:]))

	f = band.Frame(3)
	assert.Equal(t, 5, floats.MaxIdx(f.Values[:]))

	left := NewMockBand(emg.Left, DefaultScript(emg.Left, 2))
	assert.Equal(t, -1, left.Gesture(1).Channel)
	f5 := left.Frame(5)
	assert.Equal(t, 1, floats.MaxIdx(f5.Values[:]))
	f7 := left.Frame(7)
	assert.Equal(t, 6, floats.MaxIdx(f7.Values[:]))
}

func TestMockBand_RestIsLowAndNonNegative(t *testing.T) {
	band := NewMockBand(emg.Left, DefaultScript(emg.Left, 1))
	for _, ts := range []float64{0, 0.25, 0.5, 0.75} {
		f := band.Frame(ts)
		for i, v := range f.Values {
			assert.GreaterOrEqual(t, v, 0.0, "channel %d", i)
			assert.Less(t, v, 0.1, "channel %d", i)
		}
	}
}

func TestMockBand_EmptyScriptRests(t *testing.T) {
	band := NewMockBand(emg.Left, nil)
	assert.Equal(t, -1, band.Gesture(10).Channel)
	f := band.Frame(10)
	assert.Less(t, floats.Max(f.Values[:]), 0.1)
}
