// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSignal means a capture window closed without any register
	// leaving its sentinel.
	ErrNoSignal = errors.New("no signal in capture window")
	// ErrChannelCollision means both directions of one arm resolved to the
	// same channel and no alternative channel carried data.
	ErrChannelCollision = errors.New("channel collision")
	// ErrInvalidChannel means a channel index is outside [0, 7].
	ErrInvalidChannel = errors.New("invalid channel index")
)

// PhaseError reports which capture phase failed.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("calibration phase %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
