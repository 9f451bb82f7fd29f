// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"fmt"

	"github.com/relabs-tech/emg_steering/internal/emg"
)

// Direction names one end of a directional axis.
type Direction string

const (
	RightUp   Direction = "right_up"
	RightDown Direction = "right_down"
	LeftLeft  Direction = "left_left"
	LeftRight Direction = "left_right"
)

// Assignment maps each direction to the channel index that represents it.
type Assignment struct {
	RightUp   int `json:"right_up"`
	RightDown int `json:"right_down"`
	LeftLeft  int `json:"left_left"`
	LeftRight int `json:"left_right"`
}

// Unassigned returns an assignment with every direction set to
// InvalidChannel.
func Unassigned() Assignment {
	return Assignment{
		RightUp:   InvalidChannel,
		RightDown: InvalidChannel,
		LeftLeft:  InvalidChannel,
		LeftRight: InvalidChannel,
	}
}

// Channel returns the channel assigned to d.
func (a Assignment) Channel(d Direction) int {
	switch d {
	case RightUp:
		return a.RightUp
	case RightDown:
		return a.RightDown
	case LeftLeft:
		return a.LeftLeft
	case LeftRight:
		return a.LeftRight
	}
	return InvalidChannel
}

func (a *Assignment) set(d Direction, ch int) {
	switch d {
	case RightUp:
		a.RightUp = ch
	case RightDown:
		a.RightDown = ch
	case LeftLeft:
		a.LeftLeft = ch
	case LeftRight:
		a.LeftRight = ch
	}
}

// Validate checks that every channel is in range and that the two
// directions of each arm are distinct.
func (a Assignment) Validate() error {
	for _, d := range []Direction{RightUp, RightDown, LeftLeft, LeftRight} {
		if ch := a.Channel(d); ch < 0 || ch >= emg.Channels {
			return fmt.Errorf("%s=%d: %w", d, ch, ErrInvalidChannel)
		}
	}
	if a.RightUp == a.RightDown {
		return fmt.Errorf("right arm up/down both on channel %d: %w", a.RightUp, ErrChannelCollision)
	}
	if a.LeftLeft == a.LeftRight {
		return fmt.Errorf("left arm left/right both on channel %d: %w", a.LeftLeft, ErrChannelCollision)
	}
	return nil
}
