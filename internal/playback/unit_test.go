/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietloom/slidecast/internal/signal"
)

// fakePlayer is a scriptable media element.
type fakePlayer struct {
	mu        sync.Mutex
	playing   bool
	pos       time.Duration
	onEnded   func()
	playErr   error
	playCalls int
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playCalls++
	if p.playErr != nil {
		return p.playErr
	}
	p.playing = true
	return nil
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *fakePlayer) SetPosition(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

func (p *fakePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *fakePlayer) SetOnEnded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnded = fn
}

func (p *fakePlayer) state() (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing, p.pos
}

// finish simulates natural completion of the media element.
func (p *fakePlayer) finish() {
	p.mu.Lock()
	cb := p.onEnded
	p.playing = false
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func TestStartActivatesOwnSlideFromZero(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{pos: 7 * time.Second}
	unit := NewUnit("s1", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "r1"})

	playing, pos := player.state()
	if !playing {
		t.Fatal("expected playback to start")
	}
	if pos != 0 {
		t.Fatalf("expected seek to zero, at %v", pos)
	}
	if !unit.Active() {
		t.Fatal("expected unit to be active")
	}
}

func TestStartForSiblingSlidePausesPreviouslyActiveUnit(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{}
	unit := NewUnit("s1", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "r1"})
	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s2", RowID: "r1"})

	if playing, _ := player.state(); playing {
		t.Fatal("expected unit to pause when a sibling took over")
	}
	if unit.Active() {
		t.Fatal("expected active flag cleared")
	}
}

func TestRowIsolation(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{}
	unit := NewUnit("s1", "rowX", player, bus, zerolog.Nop())
	defer unit.Close()

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "rowX"})

	// Signals scoped to another row are ignored entirely, even with a
	// matching slide id.
	bus.PublishPlayback(signal.Playback{Action: signal.ActionPause, RowID: "rowY"})
	bus.PublishPlayback(signal.Playback{Action: signal.ActionStop, RowID: "rowY"})
	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "rowY"})

	if playing, _ := player.state(); !playing {
		t.Fatal("expected playback to continue through foreign-row signals")
	}
	if !unit.Active() {
		t.Fatal("expected unit to stay active")
	}
}

func TestStopAllSilencesRegardlessOfRow(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{}
	unit := NewUnit("s1", "rowX", player, bus, zerolog.Nop())
	defer unit.Close()

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "rowX"})
	player.SetPosition(3 * time.Second)

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStopAll})

	playing, pos := player.state()
	if playing || pos != 0 {
		t.Fatalf("expected paused at zero, got playing=%v pos=%v", playing, pos)
	}
	if unit.Active() {
		t.Fatal("expected active flag cleared")
	}
}

func TestPauseRetainsPositionAndStopResets(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{}
	unit := NewUnit("s1", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "r1"})
	player.SetPosition(9 * time.Second)

	bus.PublishPlayback(signal.Playback{Action: signal.ActionPause, RowID: "r1"})
	playing, pos := player.state()
	if playing {
		t.Fatal("expected pause to halt playback")
	}
	if pos != 9*time.Second {
		t.Fatalf("expected position retained, got %v", pos)
	}

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStop, RowID: "r1"})
	if _, pos := player.state(); pos != 0 {
		t.Fatalf("expected stop to reset position, got %v", pos)
	}
}

func TestResumeContinuesFromCurrentPosition(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{}
	unit := NewUnit("s1", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "r1"})
	player.SetPosition(12 * time.Second)
	bus.PublishPlayback(signal.Playback{Action: signal.ActionPause, RowID: "r1"})

	bus.PublishPlayback(signal.Playback{Action: signal.ActionResume, SlideID: "s1", RowID: "r1"})

	playing, pos := player.state()
	if !playing {
		t.Fatal("expected resume to continue playback")
	}
	if pos != 12*time.Second {
		t.Fatalf("expected resume from retained position, got %v", pos)
	}
	if !unit.Active() {
		t.Fatal("expected unit active after resume")
	}
}

func TestCompletionReportedExactlyOncePerPlayThrough(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{}
	unit := NewUnit("s1", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	var ended []signal.TrackEnded
	bus.SubscribeEnded(func(ev signal.TrackEnded) { ended = append(ended, ev) })

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "r1"})
	player.finish()
	player.finish() // duplicate media event must not re-report

	if len(ended) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(ended))
	}
	if ended[0].SlideID != "s1" || ended[0].RowID != "r1" {
		t.Fatalf("unexpected completion event: %+v", ended[0])
	}

	// Re-activation re-attaches the completion listener.
	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "r1"})
	player.finish()

	if len(ended) != 2 {
		t.Fatalf("expected second completion after reactivation, got %d", len(ended))
	}
}

func TestInactiveUnitDoesNotReportCompletion(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{}
	unit := NewUnit("s1", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	count := 0
	bus.SubscribeEnded(func(signal.TrackEnded) { count++ })

	player.finish()
	if count != 0 {
		t.Fatalf("expected no completion from an inactive unit, got %d", count)
	}
}

func TestPlaybackFailureLeavesUnitInactive(t *testing.T) {
	bus := signal.NewBus()
	player := &fakePlayer{playErr: errors.New("decode error")}
	unit := NewUnit("s1", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: "s1", RowID: "r1"})

	if unit.Active() {
		t.Fatal("expected unit to stay inactive on playback failure")
	}
	if playing, _ := player.state(); playing {
		t.Fatal("expected no playback on failure")
	}
}
