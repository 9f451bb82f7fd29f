// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/emg_steering/internal/emg"
)

// InvalidChannel is returned by channel selection and the assignment
// accessors when no channel is available.
const InvalidChannel = -1

// SentinelPolicy selects the value the max registers are reset to.
type SentinelPolicy int

const (
	// SentinelNegInf resets to -Inf: any finite sample counts as data.
	SentinelNegInf SentinelPolicy = iota
	// SentinelZero resets to 0: a channel that never rose above zero
	// counts as "no data".
	SentinelZero
)

func (p SentinelPolicy) String() string {
	if p == SentinelZero {
		return "zero"
	}
	return "neg_inf"
}

// Registry keeps per-channel running extrema for one arm during a capture
// window. Update is ignored outside an active window.
type Registry struct {
	policy  SentinelPolicy
	active  bool
	max     [emg.Channels]float64
	min     [emg.Channels]float64
	samples int
}

// NewRegistry returns a reset, inactive registry.
func NewRegistry(policy SentinelPolicy) *Registry {
	r := &Registry{policy: policy}
	r.Reset()
	return r
}

func (r *Registry) sentinel() float64 {
	if r.policy == SentinelZero {
		return 0
	}
	return math.Inf(-1)
}

// Reset returns every register to the initial sentinel.
func (r *Registry) Reset() {
	s := r.sentinel()
	for i := range r.max {
		r.max[i] = s
		r.min[i] = math.Inf(1)
	}
	r.samples = 0
}

// Begin resets the registers and opens a capture window.
func (r *Registry) Begin() {
	r.Reset()
	r.active = true
}

// End closes the capture window; the registers keep their values.
func (r *Registry) End() { r.active = false }

// Active reports whether a capture window is open.
func (r *Registry) Active() bool { return r.active }

// Samples returns the number of frames folded in since the last reset.
func (r *Registry) Samples() int { return r.samples }

// Update folds one frame into the running extrema. Non-finite channel
// values are skipped.
func (r *Registry) Update(f emg.Frame) {
	if !r.active {
		return
	}
	for i := 0; i < emg.Channels; i++ {
		if !f.Finite(i) {
			continue
		}
		v := f.Values[i]
		r.max[i] = math.Max(r.max[i], v)
		r.min[i] = math.Min(r.min[i], v)
	}
	r.samples++
}

// Max returns a copy of the running maxima.
func (r *Registry) Max() [emg.Channels]float64 { return r.max }

// PrimaryChannel returns the channel with the highest maximum, lowest index
// on ties, or InvalidChannel when no register left the sentinel.
func (r *Registry) PrimaryChannel() int {
	return r.selectChannel(InvalidChannel)
}

// SecondaryChannel is PrimaryChannel with one index excluded from the
// search.
func (r *Registry) SecondaryChannel(exclude int) int {
	return r.selectChannel(exclude)
}

func (r *Registry) selectChannel(exclude int) int {
	vals := r.max
	if exclude >= 0 && exclude < emg.Channels {
		vals[exclude] = math.Inf(-1)
	}
	idx := floats.MaxIdx(vals[:])
	if !(vals[idx] > r.sentinel()) {
		return InvalidChannel
	}
	return idx
}

// Range returns the span channel ch covered in the current or last window.
// An out-of-range channel returns the zero Range.
func (r *Registry) Range(ch int) Range {
	if ch < 0 || ch >= emg.Channels {
		return Range{}
	}
	return Range{Min: r.min[ch], Max: r.max[ch]}
}

// Range is the [Min, Max] span one channel covered during a capture window.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Valid reports whether the span is finite and non-empty.
func (r Range) Valid() bool {
	return !math.IsInf(r.Min, 0) && !math.IsInf(r.Max, 0) && r.Max > r.Min
}

// Normalize maps v into [0, 1] across the span. Invalid spans and
// non-finite values map to 0.
func (r Range) Normalize(v float64) float64 {
	if !r.Valid() || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Min(1, math.Max(0, (v-r.Min)/(r.Max-r.Min)))
}
