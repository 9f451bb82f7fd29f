// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration discovers which envelope channel of each arm band
// represents each steering direction.
//
// A run walks the user through four timed capture phases:
//
//	right_up -> right_down -> left_left -> left_right -> completed
//
// During a phase every frame of the relevant arm feeds a Registry. When the
// phase window closes the channel with the highest peak is assigned to the
// phase's direction. The second phase of each arm must not reuse the first
// phase's channel; on collision the next-highest channel is taken instead.
//
// The Calibrator is driven by an external clock through Advance and is not
// safe for concurrent use: frames, commands and ticks must all come from
// the same goroutine.
package calibration

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/emg_steering/internal/emg"
	"github.com/relabs-tech/emg_steering/internal/monitoring"
)

// Phase is a state of the calibration state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRightUp   Phase = "right_up"
	PhaseRightDown Phase = "right_down"
	PhaseLeftLeft  Phase = "left_left"
	PhaseLeftRight Phase = "left_right"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Capturing reports whether p is one of the four capture phases.
func (p Phase) Capturing() bool {
	_, ok := captureSteps[p]
	return ok
}

// Status is the coarse state observed by consumers.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// RestartMode selects what happens after a failed phase.
type RestartMode string

const (
	// RestartAuto starts a new run after Options.RestartDelay.
	RestartAuto RestartMode = "auto"
	// RestartManual waits for a Start or Restart command.
	RestartManual RestartMode = "manual"
)

// Command is a discrete user input delivered to the Calibrator.
type Command string

const (
	CommandStart   Command = "start"
	CommandRestart Command = "restart"
	CommandCancel  Command = "cancel"
)

type captureStep struct {
	dir    Direction
	arm    emg.Arm
	pair   Direction // already-assigned direction this step must not collide with
	next   Phase
	prompt string
}

var captureSteps = map[Phase]captureStep{
	PhaseRightUp:   {dir: RightUp, arm: emg.Right, next: PhaseRightDown, prompt: "Right arm: bend wrist UP and hold"},
	PhaseRightDown: {dir: RightDown, arm: emg.Right, pair: RightUp, next: PhaseLeftLeft, prompt: "Right arm: bend wrist DOWN and hold"},
	PhaseLeftLeft:  {dir: LeftLeft, arm: emg.Left, next: PhaseLeftRight, prompt: "Left arm: bend wrist LEFT and hold"},
	PhaseLeftRight: {dir: LeftRight, arm: emg.Left, pair: LeftLeft, next: PhaseCompleted, prompt: "Left arm: bend wrist RIGHT and hold"},
}

// Prompt returns the user instruction for a capture phase, or "".
func (p Phase) Prompt() string {
	return captureSteps[p].prompt
}

// Options configures a Calibrator. A non-positive CaptureDuration, an empty
// RestartMode and a negative RestartDelay fall back to defaults. A zero
// RestartDelay restarts on the next Advance after a failure.
type Options struct {
	CaptureDuration time.Duration
	RestartMode     RestartMode
	RestartDelay    time.Duration
	Sentinel        SentinelPolicy

	// OnEvent, when set, is called synchronously for every state change.
	OnEvent func(Event)
}

// DefaultOptions returns 5s capture windows with automatic restart after
// 3s and the -Inf registry sentinel.
func DefaultOptions() Options {
	return Options{
		CaptureDuration: 5 * time.Second,
		RestartMode:     RestartAuto,
		RestartDelay:    3 * time.Second,
		Sentinel:        SentinelNegInf,
	}
}

// Calibrator runs the phase-sequenced calibration.
type Calibrator struct {
	opts    Options
	left    *Registry
	right   *Registry
	phase   Phase
	elapsed time.Duration
	runID   string
	assign  Assignment
	ranges  map[Direction]Range
	err     error
	runs    int
}

// New creates an idle Calibrator.
func New(opts Options) *Calibrator {
	def := DefaultOptions()
	if opts.CaptureDuration <= 0 {
		opts.CaptureDuration = def.CaptureDuration
	}
	if opts.RestartMode == "" {
		opts.RestartMode = def.RestartMode
	}
	if opts.RestartDelay < 0 {
		opts.RestartDelay = def.RestartDelay
	}
	return &Calibrator{
		opts:   opts,
		left:   NewRegistry(opts.Sentinel),
		right:  NewRegistry(opts.Sentinel),
		phase:  PhaseIdle,
		assign: Unassigned(),
		ranges: make(map[Direction]Range),
	}
}

// Attach subscribes the Calibrator to both arm sources. The caller must
// Close the returned group on teardown.
func (c *Calibrator) Attach(left, right emg.Source) *emg.Group {
	g := &emg.Group{}
	g.Add(left, func(f emg.Frame) { c.HandleFrame(emg.Left, f) })
	g.Add(right, func(f emg.Frame) { c.HandleFrame(emg.Right, f) })
	return g
}

// HandleFrame folds a frame from arm into that arm's registry. Frames
// outside an active capture window of the same arm are ignored.
func (c *Calibrator) HandleFrame(arm emg.Arm, f emg.Frame) {
	if reg := c.registry(arm); reg != nil {
		reg.Update(f)
	}
}

// Registry returns the registry of arm, or nil for an unknown arm.
func (c *Calibrator) Registry(arm emg.Arm) *Registry {
	return c.registry(arm)
}

func (c *Calibrator) registry(arm emg.Arm) *Registry {
	switch arm {
	case emg.Left:
		return c.left
	case emg.Right:
		return c.right
	}
	return nil
}

// Start begins a new run. It is a no-op returning false while a run is
// already capturing.
func (c *Calibrator) Start() bool {
	if c.phase.Capturing() {
		monitoring.Logf("calibration: start ignored, run %s already in %s", c.runID, c.phase)
		return false
	}
	c.startRun()
	return true
}

// Restart discards the current run in any state and starts from the first
// phase.
func (c *Calibrator) Restart() {
	c.abort()
	c.emit(Event{Type: EventRestart, Reason: "restart requested"})
	c.startRun()
}

// Cancel aborts a capturing or failed run and returns to idle. A completed
// calibration is kept.
func (c *Calibrator) Cancel() {
	if !c.phase.Capturing() && c.phase != PhaseFailed {
		return
	}
	c.abort()
	c.phase = PhaseIdle
	c.emit(Event{Type: EventCancelled, Reason: "cancelled by user"})
	monitoring.Logf("calibration: run %s cancelled", c.runID)
}

// Execute dispatches a discrete command.
func (c *Calibrator) Execute(cmd Command) error {
	switch cmd {
	case CommandStart:
		c.Start()
	case CommandRestart:
		c.Restart()
	case CommandCancel:
		c.Cancel()
	default:
		return fmt.Errorf("calibration: unknown command %q", cmd)
	}
	return nil
}

// Advance moves the phase timer forward by dt. A window that closes
// consumes the remainder of dt; the next phase starts counting from zero.
func (c *Calibrator) Advance(dt time.Duration) {
	if dt <= 0 {
		return
	}
	switch {
	case c.phase.Capturing():
		c.elapsed += dt
		if c.elapsed >= c.opts.CaptureDuration {
			c.finishPhase()
		}
	case c.phase == PhaseFailed && c.opts.RestartMode == RestartAuto:
		c.elapsed += dt
		if c.elapsed >= c.opts.RestartDelay {
			c.emit(Event{Type: EventRestart, Reason: "automatic restart after failure"})
			monitoring.Logf("calibration: automatic restart after %v", c.opts.RestartDelay)
			c.startRun()
		}
	}
}

func (c *Calibrator) startRun() {
	c.runID = uuid.NewString()
	c.runs++
	c.assign = Unassigned()
	clear(c.ranges)
	c.err = nil
	monitoring.Logf("calibration: run %s started (capture %v per phase)", c.runID, c.opts.CaptureDuration)
	c.enterPhase(PhaseRightUp)
}

func (c *Calibrator) enterPhase(p Phase) {
	c.left.End()
	c.right.End()
	c.phase = p
	c.elapsed = 0
	step := captureSteps[p]
	c.registry(step.arm).Begin()
	c.emit(Event{Type: EventPhaseStarted, Reason: step.prompt})
	monitoring.Logf("calibration: phase %s started: %s", p, step.prompt)
}

func (c *Calibrator) finishPhase() {
	step := captureSteps[c.phase]
	reg := c.registry(step.arm)
	reg.End()

	ch := reg.PrimaryChannel()
	if ch == InvalidChannel {
		c.fail(&PhaseError{Phase: c.phase, Err: ErrNoSignal})
		return
	}

	if step.pair != "" {
		if claimed := c.assign.Channel(step.pair); ch == claimed {
			alt := reg.SecondaryChannel(claimed)
			if alt == InvalidChannel {
				c.fail(&PhaseError{
					Phase: c.phase,
					Err:   fmt.Errorf("%w: channel %d already claimed by %s: %w", ErrChannelCollision, ch, step.pair, ErrNoSignal),
				})
				return
			}
			monitoring.Logf("calibration: %s collided with %s on channel %d, using channel %d", step.dir, step.pair, ch, alt)
			c.emit(Event{Type: EventCollisionResolved, Channel: alt,
				Reason: fmt.Sprintf("channel %d already claimed by %s", ch, step.pair)})
			ch = alt
		}
	}

	c.assign.set(step.dir, ch)
	c.ranges[step.dir] = reg.Range(ch)
	c.emit(Event{Type: EventPhaseDone, Channel: ch})
	monitoring.Logf("calibration: phase %s resolved channel %d (maxima %.3f, %d samples)",
		c.phase, ch, reg.Max(), reg.Samples())

	if step.next == PhaseCompleted {
		c.complete()
		return
	}
	c.enterPhase(step.next)
}

func (c *Calibrator) complete() {
	if err := c.assign.Validate(); err != nil {
		c.fail(&PhaseError{Phase: c.phase, Err: err})
		return
	}
	c.phase = PhaseCompleted
	c.elapsed = 0
	c.emit(Event{Type: EventCompleted})
	monitoring.Logf("calibration: run %s completed: right up=%d down=%d, left left=%d right=%d",
		c.runID, c.assign.RightUp, c.assign.RightDown, c.assign.LeftLeft, c.assign.LeftRight)
}

func (c *Calibrator) fail(err error) {
	failed := c.phase
	c.abort()
	c.phase = PhaseFailed
	c.err = err
	c.emit(Event{Type: EventFailed, Reason: err.Error(), Err: err, FailedPhase: failed})
	if c.opts.RestartMode == RestartAuto {
		monitoring.Logf("calibration: %v; restarting in %v", err, c.opts.RestartDelay)
	} else {
		monitoring.Logf("calibration: %v; waiting for restart command", err)
	}
}

func (c *Calibrator) abort() {
	c.left.End()
	c.right.End()
	c.elapsed = 0
	c.assign = Unassigned()
	clear(c.ranges)
}

func (c *Calibrator) emit(e Event) {
	if c.opts.OnEvent == nil {
		return
	}
	e.RunID = c.runID
	e.Phase = c.phase
	e.Status = c.Status()
	e.Assignment = c.assign
	if e.Type != EventCollisionResolved && e.Type != EventPhaseDone {
		e.Channel = InvalidChannel
	}
	c.opts.OnEvent(e)
}

// Phase returns the current state.
func (c *Calibrator) Phase() Phase { return c.phase }

// Status maps the phase onto not_started / in_progress / completed. A
// failed run reports not_started; see Failed.
func (c *Calibrator) Status() Status {
	switch {
	case c.phase.Capturing():
		return StatusInProgress
	case c.phase == PhaseCompleted:
		return StatusCompleted
	}
	return StatusNotStarted
}

// IsCalibrated reports whether a run completed and its assignment is usable.
func (c *Calibrator) IsCalibrated() bool { return c.phase == PhaseCompleted }

// Failed reports whether the last run failed and has not been restarted.
func (c *Calibrator) Failed() bool { return c.phase == PhaseFailed }

// Err returns the failure of the last run, if any.
func (c *Calibrator) Err() error { return c.err }

// RunID identifies the current or last run.
func (c *Calibrator) RunID() string { return c.runID }

// Runs returns how many runs have been started.
func (c *Calibrator) Runs() int { return c.runs }

// Progress returns the elapsed fraction of the current capture window or
// restart cooldown, in [0, 1].
func (c *Calibrator) Progress() float64 {
	var window time.Duration
	switch {
	case c.phase.Capturing():
		window = c.opts.CaptureDuration
	case c.phase == PhaseFailed && c.opts.RestartMode == RestartAuto:
		window = c.opts.RestartDelay
	case c.phase == PhaseCompleted:
		return 1
	default:
		return 0
	}
	if window <= 0 {
		return 1
	}
	return min(1, float64(c.elapsed)/float64(window))
}

// Assignment returns the channel assignment. Every direction is
// InvalidChannel until a run completes.
func (c *Calibrator) Assignment() Assignment {
	if !c.IsCalibrated() {
		return Unassigned()
	}
	return c.assign
}

// Range returns the span d's channel covered during its capture window.
// It is the zero Range until a run completes.
func (c *Calibrator) Range(d Direction) Range {
	if !c.IsCalibrated() {
		return Range{}
	}
	return c.ranges[d]
}

// RightArmUpChannel returns the right-up channel or InvalidChannel.
func (c *Calibrator) RightArmUpChannel() int { return c.Assignment().RightUp }

// RightArmDownChannel returns the right-down channel or InvalidChannel.
func (c *Calibrator) RightArmDownChannel() int { return c.Assignment().RightDown }

// LeftArmLeftChannel returns the left-left channel or InvalidChannel.
func (c *Calibrator) LeftArmLeftChannel() int { return c.Assignment().LeftLeft }

// LeftArmRightChannel returns the left-right channel or InvalidChannel.
func (c *Calibrator) LeftArmRightChannel() int { return c.Assignment().LeftRight }
