// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package emg

import (
	"fmt"
	"math"
)

// Channels is the number of envelope channels delivered by one arm band.
const Channels = 8

// Arm identifies which forearm band produced a frame.
type Arm string

const (
	Left  Arm = "left"
	Right Arm = "right"
)

// ParseArm converts "left"/"right" into an Arm.
func ParseArm(s string) (Arm, error) {
	switch Arm(s) {
	case Left, Right:
		return Arm(s), nil
	}
	return "", fmt.Errorf("unknown arm %q (want left or right)", s)
}

// Frame is a single RMS envelope sample from one arm band.
// Values are expected to be non-negative; Timestamp is in seconds and
// non-decreasing per band.
type Frame struct {
	Source    Arm               `json:"source"` // "left" or "right"
	Timestamp float64           `json:"t"`
	Values    [Channels]float64 `json:"ch"`
}

// Value returns channel i, or 0 when i is out of range.
func (f Frame) Value(i int) float64 {
	if i < 0 || i >= Channels {
		return 0
	}
	return f.Values[i]
}

// Finite reports whether channel i holds a finite sample.
func (f Frame) Finite(i int) bool {
	v := f.Value(i)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
