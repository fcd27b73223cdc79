/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quietloom/slidecast/internal/signal"
)

// eventFeed fans signal bus traffic out to websocket subscribers. Each
// subscriber gets a buffered channel; slow consumers drop events rather than
// stall the bus.
type eventFeed struct {
	logger zerolog.Logger

	mu     sync.Mutex
	subs   map[int]chan []byte
	nextID int

	unsubPlayback func()
	unsubEnded    func()
}

func newEventFeed(bus *signal.Bus, logger zerolog.Logger) *eventFeed {
	f := &eventFeed{
		logger: logger.With().Str("component", "event_feed").Logger(),
		subs:   make(map[int]chan []byte),
	}
	f.unsubPlayback = bus.SubscribePlayback(func(ev signal.Playback) {
		f.broadcast("playback", ev)
	})
	f.unsubEnded = bus.SubscribeEnded(func(ev signal.TrackEnded) {
		f.broadcast("track_ended", ev)
	})
	return f
}

func (f *eventFeed) close() {
	if f.unsubPlayback != nil {
		f.unsubPlayback()
	}
	if f.unsubEnded != nil {
		f.unsubEnded()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}

func (f *eventFeed) subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 64)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
}

func (f *eventFeed) broadcast(eventType string, payload any) {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		f.logger.Error().Err(err).Str("type", eventType).Msg("failed to marshal feed event")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- data:
		default:
			f.logger.Warn().Str("type", eventType).Msg("subscriber channel full, dropping event")
		}
	}
}
