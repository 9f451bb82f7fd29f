// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/emg_steering/internal/calibration"
	"github.com/relabs-tech/emg_steering/internal/emg"
	"github.com/relabs-tech/emg_steering/internal/mapper"
	"github.com/relabs-tech/emg_steering/internal/monitoring"
	"github.com/relabs-tech/emg_steering/internal/session"
	"github.com/relabs-tech/emg_steering/internal/timeutil"
)

// Controller actions accepted on the command topic besides the calibration
// commands (start, restart, cancel).
const (
	ActionSessionStart = "session_start"
	ActionSessionReset = "session_reset"
	ActionCollect      = "collect"
)

const (
	frameQueueSize   = 256
	commandQueueSize = 16
)

// Publisher sends a payload on a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Topics the controller publishes on.
type Topics struct {
	Axes        string
	Calibration string
	Session     string
}

// Command is a user command as carried on the command topic.
type Command struct {
	Action string `json:"action"`
	Color  string `json:"color,omitempty"`
}

// AxesMessage is the payload published on the axes topic every tick.
// Phase and Progress track the calibration run so clients can draw the
// capture countdown.
type AxesMessage struct {
	Horizontal float64           `json:"horizontal"`
	Vertical   float64           `json:"vertical"`
	Forward    float64           `json:"forward"`
	Calibrated bool              `json:"calibrated"`
	Phase      calibration.Phase `json:"phase"`
	Progress   float64           `json:"progress"`
	Time       string            `json:"time"`
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Calibration     calibration.Options
	Mapper          mapper.Options
	SessionDuration time.Duration
	TickInterval    time.Duration
	Topics          Topics

	// StartCalibration begins a calibration run as soon as Run starts.
	StartCalibration bool
}

// Controller owns the calibrator, mapper and session. Every method except
// EnqueueFrame and EnqueueCommand must be called from the goroutine running
// Run (or, in tests, from the single test goroutine).
type Controller struct {
	opts  ControllerOptions
	clock timeutil.Clock
	pub   Publisher

	left  *emg.Bus
	right *emg.Bus

	cal     *calibration.Calibrator
	mapper  *mapper.Mapper
	session *session.Session
	subs    []*emg.Group

	frames   chan emg.Frame
	commands chan Command

	lastTick time.Time
	dropped  atomic.Uint64
}

// NewController wires a calibrator and mapper to a pair of frame buses.
// Close must be called to release the subscriptions.
func NewController(opts ControllerOptions, clock timeutil.Clock, pub Publisher) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 20 * time.Millisecond
	}
	c := &Controller{
		opts:     opts,
		clock:    clock,
		pub:      pub,
		left:     emg.NewBus(emg.Left),
		right:    emg.NewBus(emg.Right),
		frames:   make(chan emg.Frame, frameQueueSize),
		commands: make(chan Command, commandQueueSize),
	}

	calOpts := opts.Calibration
	calOpts.OnEvent = c.publishEvent
	c.cal = calibration.New(calOpts)
	c.mapper = mapper.New(c.cal, opts.Mapper)
	c.session = session.New(c.cal, opts.SessionDuration)

	// calibrator first so a frame closing a window is seen by the registry
	// before the mapper reads the assignment
	c.subs = append(c.subs, c.cal.Attach(c.left, c.right))
	c.subs = append(c.subs, c.mapper.Attach(c.left, c.right))
	return c
}

// Calibrator returns the owned calibrator.
func (c *Controller) Calibrator() *calibration.Calibrator { return c.cal }

// Mapper returns the owned mapper.
func (c *Controller) Mapper() *mapper.Mapper { return c.mapper }

// Session returns the owned collection session.
func (c *Controller) Session() *session.Session { return c.session }

// Dropped returns the number of frames discarded, either because the queue
// was full or because the frame came from an unknown arm. It is safe to
// call from any goroutine.
func (c *Controller) Dropped() uint64 { return c.dropped.Load() }

// EnqueueFrame hands a frame to the loop without blocking. It is safe to
// call from transport callbacks. A full queue drops the frame.
func (c *Controller) EnqueueFrame(f emg.Frame) bool {
	select {
	case c.frames <- f:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// EnqueueCommand hands a command to the loop without blocking.
func (c *Controller) EnqueueCommand(cmd Command) bool {
	select {
	case c.commands <- cmd:
		return true
	default:
		return false
	}
}

// HandleFrame publishes f on the bus of its source arm.
func (c *Controller) HandleFrame(f emg.Frame) error {
	switch f.Source {
	case emg.Left:
		c.left.Publish(f)
	case emg.Right:
		c.right.Publish(f)
	default:
		return fmt.Errorf("controller: frame from unknown arm %q", f.Source)
	}
	return nil
}

// Execute runs one user command.
func (c *Controller) Execute(cmd Command) error {
	switch cmd.Action {
	case string(calibration.CommandStart), string(calibration.CommandRestart), string(calibration.CommandCancel):
		return c.cal.Execute(calibration.Command(cmd.Action))
	case ActionSessionStart:
		if err := c.session.Start(); err != nil {
			return fmt.Errorf("controller: %w", err)
		}
	case ActionSessionReset:
		c.session.Reset()
	case ActionCollect:
		if !c.session.Running() {
			return fmt.Errorf("controller: collect %s: session not running", cmd.Color)
		}
		c.session.Collect(cmd.Color)
	default:
		return fmt.Errorf("controller: unknown action %q", cmd.Action)
	}
	c.publishSession()
	return nil
}

// Step advances calibration and session by the time since the previous
// step and publishes the axes.
func (c *Controller) Step(now time.Time) {
	var dt time.Duration
	if !c.lastTick.IsZero() {
		dt = now.Sub(c.lastTick)
	}
	c.lastTick = now

	c.cal.Advance(dt)
	running := c.session.Running()
	ended := c.session.Advance(dt)
	if running || ended {
		c.publishSession()
	}
	c.publishAxes(now)
}

// Run drives the controller until ctx is done. Frames and commands queued
// from other goroutines are processed here, and the control tick runs on
// the injected clock.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	c.lastTick = c.clock.Now()
	if c.opts.StartCalibration {
		c.cal.Start()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f := <-c.frames:
			if err := c.HandleFrame(f); err != nil {
				c.dropped.Add(1)
				monitoring.Logf("%v", err)
			}

		case cmd := <-c.commands:
			if err := c.Execute(cmd); err != nil {
				monitoring.Logf("%v", err)
			}

		case t := <-ticker.C():
			c.Step(t)
		}
	}
}

// Close releases the bus subscriptions and reports any that leaked.
func (c *Controller) Close() error {
	var errs []error
	for _, g := range c.subs {
		if err := g.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.subs = nil
	if n := c.left.Len() + c.right.Len(); n > 0 {
		errs = append(errs, fmt.Errorf("controller: %d frame subscriptions leaked", n))
	}
	return errors.Join(errs...)
}

func (c *Controller) publishEvent(e calibration.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		monitoring.Logf("controller: calibration event marshal error: %v", err)
		return
	}
	c.publish(c.opts.Topics.Calibration, payload)
}

func (c *Controller) publishAxes(now time.Time) {
	axes := c.mapper.Axes()
	msg := AxesMessage{
		Horizontal: axes.Horizontal,
		Vertical:   axes.Vertical,
		Forward:    axes.Forward,
		Calibrated: c.cal.IsCalibrated(),
		Phase:      c.cal.Phase(),
		Progress:   c.cal.Progress(),
		Time:       now.UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		monitoring.Logf("controller: axes marshal error: %v", err)
		return
	}
	c.publish(c.opts.Topics.Axes, payload)
}

func (c *Controller) publishSession() {
	payload, err := json.Marshal(c.session.Snapshot())
	if err != nil {
		monitoring.Logf("controller: session marshal error: %v", err)
		return
	}
	c.publish(c.opts.Topics.Session, payload)
}

func (c *Controller) publish(topic string, payload []byte) {
	if c.pub == nil || topic == "" {
		return
	}
	if err := c.pub.Publish(topic, payload); err != nil {
		monitoring.Logf("controller: publish %s error: %v", topic, err)
	}
}
