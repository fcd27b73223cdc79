/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package signal carries the playback coordination events exchanged between
// the playlist coordinator and audio playback units.
package signal

import "sync"

// Action enumerates playback signal verbs.
type Action string

const (
	// ActionStart activates the target slide's audio from position zero.
	ActionStart Action = "start"
	// ActionPause pauses the active slide in the target row, keeping position.
	ActionPause Action = "pause"
	// ActionStop pauses and resets the active slide in the target row.
	ActionStop Action = "stop"
	// ActionResume continues the target slide from its current position.
	ActionResume Action = "resume"
	// ActionStopAll silences every unit regardless of row. This is the one
	// row-unscoped signal; it runs before a new session to guarantee no
	// cross-row audio bleed.
	ActionStopAll Action = "stop_all"
)

// Playback is a coordination signal published by the playlist coordinator.
// SlideID is empty for slide-agnostic signals (pause, stop, stopAll); RowID is
// empty only for ActionStopAll.
type Playback struct {
	SlideID string `json:"slide_id,omitempty"`
	RowID   string `json:"row_id,omitempty"`
	Action  Action `json:"action"`
}

// TrackEnded reports natural completion of a slide's audio, published by the
// owning playback unit and consumed by the coordinator.
type TrackEnded struct {
	SlideID string `json:"slide_id"`
	RowID   string `json:"row_id"`
}

type playbackSub struct {
	id int
	fn func(Playback)
}

type endedSub struct {
	id int
	fn func(TrackEnded)
}

// Bus implements in-process pubsub for playback coordination. Unlike a
// channel-based bus, delivery is synchronous and in registration order: the
// ordering of signals relative to unit reactions is a correctness invariant
// for the playlist engine, and handlers may publish from within a delivery
// (a unit reports completion while handling no signal at all, the coordinator
// stops a session while handling a completion).
type Bus struct {
	mu       sync.Mutex
	nextID   int
	playback []playbackSub
	ended    []endedSub
}

// NewBus creates a signal bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribePlayback registers a handler for playback signals. The returned
// function removes the subscription.
func (b *Bus) SubscribePlayback(fn func(Playback)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.playback = append(b.playback, playbackSub{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.playback {
			if sub.id == id {
				b.playback = append(b.playback[:i], b.playback[i+1:]...)
				return
			}
		}
	}
}

// SubscribeEnded registers a handler for track completion events.
func (b *Bus) SubscribeEnded(fn func(TrackEnded)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.ended = append(b.ended, endedSub{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.ended {
			if sub.id == id {
				b.ended = append(b.ended[:i], b.ended[i+1:]...)
				return
			}
		}
	}
}

// PublishPlayback delivers the signal to all current subscribers, in
// registration order, on the caller's goroutine.
func (b *Bus) PublishPlayback(sig Playback) {
	b.mu.Lock()
	subs := append([]playbackSub(nil), b.playback...)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.fn(sig)
	}
}

// PublishEnded delivers the completion event to all current subscribers, in
// registration order, on the caller's goroutine.
func (b *Bus) PublishEnded(ev TrackEnded) {
	b.mu.Lock()
	subs := append([]endedSub(nil), b.ended...)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}
