/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback binds one media element to the playlist signal protocol.
package playback

import "time"

// Player abstracts a single media element. Implementations are not shared:
// every Unit exclusively owns its Player.
//
// Completion is asynchronous: the callback installed with SetOnEnded fires
// from a separate goroutine (or event loop turn) after playback finishes.
// Play must return without invoking it, even for a zero-length track — the
// Unit calls Play while holding its own lock and would deadlock on a
// synchronous callback.
type Player interface {
	// Play starts or continues playback from the current position.
	Play() error
	// Pause halts playback, keeping the current position.
	Pause()
	// SetPosition seeks to the given offset.
	SetPosition(pos time.Duration)
	// Position returns the current playback offset.
	Position() time.Duration
	// SetOnEnded installs the natural-completion callback. Passing nil
	// detaches it.
	SetOnEnded(fn func())
}
