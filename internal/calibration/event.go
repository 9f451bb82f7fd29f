// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

// EventType classifies calibration events.
type EventType string

const (
	EventPhaseStarted      EventType = "phase_started"
	EventPhaseDone         EventType = "phase_done"
	EventCollisionResolved EventType = "collision_resolved"
	EventFailed            EventType = "failed"
	EventRestart           EventType = "restart"
	EventCancelled         EventType = "cancelled"
	EventCompleted         EventType = "completed"
)

// Event describes one calibration state change. Phase and Status reflect
// the state after the change; Assignment holds the directions resolved so
// far in the current run.
type Event struct {
	Type        EventType  `json:"type"`
	RunID       string     `json:"run_id"`
	Phase       Phase      `json:"phase"`
	Status      Status     `json:"status"`
	FailedPhase Phase      `json:"failed_phase,omitempty"`
	Channel     int        `json:"channel"`
	Assignment  Assignment `json:"assignment"`
	Reason      string     `json:"reason,omitempty"`
	Err         error      `json:"-"`
}
