// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package emg

import (
	"errors"
	"fmt"
)

// ErrNotSubscribed is returned when a subscription is released twice or
// belongs to a different source.
var ErrNotSubscribed = errors.New("emg: handler not subscribed")

// Handler receives every new frame of a source.
type Handler func(Frame)

// Subscription is the cancellation token returned by Subscribe.
type Subscription interface {
	Unsubscribe() error
}

// Source is anything that pushes envelope frames to subscribers.
type Source interface {
	Subscribe(h Handler) Subscription
}

// Bus is a synchronous in-process Source. Publish invokes every handler on
// the caller's goroutine in subscription order. A Bus is owned by a single
// goroutine and is not safe for concurrent use.
type Bus struct {
	arm    Arm
	nextID uint64
	subs   []*busSubscription
}

type busSubscription struct {
	bus    *Bus
	id     uint64
	h      Handler
	active bool
}

// NewBus creates an empty bus for one arm.
func NewBus(arm Arm) *Bus {
	return &Bus{arm: arm}
}

// Arm returns the arm this bus carries frames for.
func (b *Bus) Arm() Arm { return b.arm }

// Subscribe registers h and returns the token that removes it.
func (b *Bus) Subscribe(h Handler) Subscription {
	b.nextID++
	s := &busSubscription{bus: b, id: b.nextID, h: h, active: true}
	b.subs = append(b.subs, s)
	return s
}

// Publish delivers f to every active subscriber. A handler removed while
// the frame is being delivered is not called.
func (b *Bus) Publish(f Frame) {
	if len(b.subs) == 0 {
		return
	}
	snapshot := make([]*busSubscription, len(b.subs))
	copy(snapshot, b.subs)
	for _, s := range snapshot {
		if s.active {
			s.h(f)
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int { return len(b.subs) }

func (s *busSubscription) Unsubscribe() error {
	if !s.active {
		return fmt.Errorf("%s bus subscription %d: %w", s.bus.arm, s.id, ErrNotSubscribed)
	}
	s.active = false
	subs := s.bus.subs
	for i, other := range subs {
		if other == s {
			s.bus.subs = append(subs[:i], subs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s bus subscription %d: %w", s.bus.arm, s.id, ErrNotSubscribed)
}

// Group collects subscriptions so they can be released together on
// teardown, typically with defer.
type Group struct {
	subs []Subscription
}

// Add subscribes h to src and records the token.
func (g *Group) Add(src Source, h Handler) {
	g.subs = append(g.subs, src.Subscribe(h))
}

// Len returns the number of held subscriptions.
func (g *Group) Len() int { return len(g.subs) }

// Close releases every held subscription. All are attempted; the joined
// errors are returned.
func (g *Group) Close() error {
	var errs []error
	for _, s := range g.subs {
		if err := s.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	g.subs = nil
	return errors.Join(errs...)
}
