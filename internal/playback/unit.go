/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/quietloom/slidecast/internal/signal"
)

// Unit makes exactly one playable media element obey coordinator signals
// scoped to its (slide, row) pair. It owns no scheduling state; it only
// drives play/pause/seek and relays completion back to the coordinator.
type Unit struct {
	slideID string
	rowID   string
	player  Player
	bus     *signal.Bus
	logger  zerolog.Logger

	mu     sync.Mutex
	active bool
	unsub  func()
}

// NewUnit creates a playback unit and mounts it on the bus.
func NewUnit(slideID, rowID string, player Player, bus *signal.Bus, logger zerolog.Logger) *Unit {
	u := &Unit{
		slideID: slideID,
		rowID:   rowID,
		player:  player,
		bus:     bus,
		logger:  logger.With().Str("slide", slideID).Str("row", rowID).Logger(),
	}
	u.unsub = bus.SubscribePlayback(u.handle)
	return u
}

// Active reports whether this unit is the slide the coordinator currently
// wants playing.
func (u *Unit) Active() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active
}

// Close unmounts the unit from the bus and detaches its media callback.
func (u *Unit) Close() {
	if u.unsub != nil {
		u.unsub()
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.player.SetOnEnded(nil)
	u.active = false
}

func (u *Unit) handle(sig signal.Playback) {
	u.mu.Lock()
	defer u.mu.Unlock()

	// stopAll is the one row-unscoped signal: silence unconditionally so a
	// new row's session never competes with stray audio.
	if sig.Action == signal.ActionStopAll {
		u.player.Pause()
		u.player.SetPosition(0)
		u.active = false
		return
	}

	// Row isolation: everything else is scoped to our own row.
	if sig.RowID != u.rowID {
		return
	}

	switch sig.Action {
	case signal.ActionPause:
		u.player.Pause()
		u.active = false

	case signal.ActionStop:
		u.player.Pause()
		u.player.SetPosition(0)
		u.active = false

	case signal.ActionResume:
		if sig.SlideID != u.slideID {
			return
		}
		u.player.SetOnEnded(u.onEnded)
		if err := u.player.Play(); err != nil {
			u.logger.Warn().Err(err).Msg("resume failed")
			u.active = false
			return
		}
		u.active = true

	case signal.ActionStart:
		if sig.SlideID == u.slideID {
			u.player.SetPosition(0)
			u.player.SetOnEnded(u.onEnded)
			if err := u.player.Play(); err != nil {
				u.logger.Warn().Err(err).Msg("playback failed")
				u.active = false
				return
			}
			u.active = true
			return
		}
		// A different slide in our row took over.
		if u.active {
			u.player.Pause()
			u.active = false
		}
	}
}

// onEnded fires on natural completion. The callback detaches itself so a
// completion is reported exactly once per play-through; activation
// re-attaches it.
func (u *Unit) onEnded() {
	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return
	}
	u.player.SetOnEnded(nil)
	ev := signal.TrackEnded{SlideID: u.slideID, RowID: u.rowID}
	u.mu.Unlock()

	u.bus.PublishEnded(ev)
}
