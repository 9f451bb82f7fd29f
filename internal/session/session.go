// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session holds the per-game state: score and countdown. It is an
// explicit value owned by the controller, gated on calibration.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relabs-tech/emg_steering/internal/monitoring"
)

var (
	ErrNotCalibrated = errors.New("session: calibration not complete")
	ErrGameOver      = errors.New("session: game over, reset first")
)

// Gate reports whether steering input is usable.
type Gate interface {
	IsCalibrated() bool
}

// blossom colour (RGB hex) -> points
var blossomPoints = map[string]int{
	"FFEF00": 5,
	"FFB000": 10,
	"FF8700": 20,
	"FF5000": 35,
	"93000A": 55,
}

// PointsForColor returns the points awarded for a blossom of the given RGB
// hex colour ("#" prefix and case are ignored). Unknown colours score 0.
func PointsForColor(hex string) int {
	return blossomPoints[strings.ToUpper(strings.TrimPrefix(hex, "#"))]
}

// Session is a timed game round.
type Session struct {
	gate      Gate
	duration  time.Duration
	remaining time.Duration
	running   bool
	over      bool
	score     int
}

// Snapshot is the JSON view published to consumers.
type Snapshot struct {
	Score     int     `json:"score"`
	Remaining float64 `json:"remaining_sec"`
	Clock     string  `json:"clock"`
	Running   bool    `json:"running"`
	Over      bool    `json:"over"`
}

// New returns a stopped session of the given length.
func New(gate Gate, duration time.Duration) *Session {
	return &Session{gate: gate, duration: duration, remaining: duration}
}

// Start runs the countdown. It refuses until calibration is usable.
func (s *Session) Start() error {
	if s.gate == nil || !s.gate.IsCalibrated() {
		return ErrNotCalibrated
	}
	if s.over {
		return ErrGameOver
	}
	if !s.running {
		s.running = true
		monitoring.Logf("session: started (%s remaining)", s.Clock())
	}
	return nil
}

// Advance counts down by dt and reports whether the game ended on this call.
func (s *Session) Advance(dt time.Duration) bool {
	if !s.running || dt <= 0 {
		return false
	}
	s.remaining -= dt
	if s.remaining > 0 {
		return false
	}
	s.remaining = 0
	s.running = false
	s.over = true
	monitoring.Logf("session: game over, score %d", s.score)
	return true
}

// Collect awards the points of a blossom colour while the game runs and
// returns the points added.
func (s *Session) Collect(hex string) int {
	if !s.running {
		return 0
	}
	pts := PointsForColor(hex)
	s.AddPoints(pts)
	return pts
}

// AddPoints adds to the score.
func (s *Session) AddPoints(points int) {
	s.score += points
	monitoring.Logf("session: score %d (+%d)", s.score, points)
}

// Reset clears the score and rewinds the countdown.
func (s *Session) Reset() {
	s.score = 0
	s.remaining = s.duration
	s.running = false
	s.over = false
}

// Score returns the points collected so far.
func (s *Session) Score() int { return s.score }

// Remaining returns the time left on the countdown.
func (s *Session) Remaining() time.Duration { return s.remaining }

// Running reports whether the countdown is active.
func (s *Session) Running() bool { return s.running }

// Over reports whether the countdown reached zero.
func (s *Session) Over() bool { return s.over }

// Clock formats the remaining time as MM:SS.
func (s *Session) Clock() string {
	secs := int(s.remaining / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Score:     s.score,
		Remaining: s.remaining.Seconds(),
		Clock:     s.Clock(),
		Running:   s.running,
		Over:      s.over,
	}
}
