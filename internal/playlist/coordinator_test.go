/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietloom/slidecast/internal/models"
	"github.com/quietloom/slidecast/internal/playback"
	"github.com/quietloom/slidecast/internal/signal"
	"github.com/quietloom/slidecast/internal/visibility"
)

type fakePlayer struct {
	mu      sync.Mutex
	playing bool
	pos     time.Duration
	onEnded func()
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
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

func (p *fakePlayer) isPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) finish() {
	p.mu.Lock()
	cb := p.onEnded
	p.playing = false
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestCoordinator(t *testing.T, bus *signal.Bus) *Coordinator {
	t.Helper()
	c := NewCoordinator(bus, visibility.New(zerolog.Nop()), zerolog.Nop(),
		WithSettleDelay(0),
	)
	t.Cleanup(c.Close)
	return c
}

func slide(id string, pos int, audio string) models.Slide {
	return models.Slide{ID: id, Position: pos, AudioURL: audio, IsPublished: true}
}

// Row layout from the curated deck scenario: A and C carry no audio, B and D
// do. The session must relocate to B, skip C, play D, and terminate.
func TestSequenceSkipsNonAudioSlidesAndTerminates(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	slides := []models.Slide{
		slide("A", 0, ""),
		slide("B", 1, "b.mp3"),
		slide("C", 2, ""),
		slide("D", 3, "d.mp3"),
	}

	playerB := &fakePlayer{}
	playerD := &fakePlayer{}
	unitB := playback.NewUnit("B", "r1", playerB, bus, zerolog.Nop())
	defer unitB.Close()
	unitD := playback.NewUnit("D", "r1", playerD, bus, zerolog.Nop())
	defer unitD.Close()

	carousel := NewMemoryCarousel() // sits on A

	c.Start("r1", 0, carousel, slides)

	waitFor(t, "relocation to B", func() bool {
		return carousel.CurrentIndex() == 1 && playerB.isPlaying()
	})
	if got := c.Status(); !got.Active || got.ActiveSlideID != "B" {
		t.Fatalf("unexpected status after start: %+v", got)
	}

	playerB.finish()

	waitFor(t, "advance to D", func() bool {
		return carousel.CurrentIndex() == 3 && playerD.isPlaying()
	})
	if got := c.Status(); got.ActiveSlideID != "D" {
		t.Fatalf("expected D active, got %+v", got)
	}

	playerD.finish()

	waitFor(t, "session termination", func() bool {
		return !c.Status().Active
	})
	if playerD.isPlaying() || playerD.Position() != 0 {
		t.Fatal("expected final stop to reset the last unit")
	}
}

func TestStartPlaysCurrentSlideWithoutRelocation(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	slides := []models.Slide{
		slide("A", 0, ""),
		slide("B", 1, "b.mp3"),
	}
	player := &fakePlayer{}
	unit := playback.NewUnit("B", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	carousel := NewMemoryCarousel()
	carousel.MoveTo(1) // viewer already on B

	c.Start("r1", 0, carousel, slides)

	waitFor(t, "B playing", player.isPlaying)
	if carousel.CurrentIndex() != 1 {
		t.Fatalf("carousel moved to %d, expected to stay on 1", carousel.CurrentIndex())
	}
}

func TestStartWithNoEligibleAudioIsANoOp(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	playing := &fakePlayer{}
	unit := playback.NewUnit("B", "r1", playing, bus, zerolog.Nop())
	defer unit.Close()

	c.Start("r1", 0, NewMemoryCarousel(), []models.Slide{slide("B", 0, "b.mp3")})
	waitFor(t, "first session playing", playing.isPlaying)

	// A second row whose only audio slide is unpublished: starting it must
	// not move anything, broadcast anything, or disturb the running session.
	hidden := slide("X", 0, "x.mp3")
	hidden.IsPublished = false
	carousel := NewMemoryCarousel()

	c.Start("r2", 0, carousel, []models.Slide{slide("W", 0, ""), hidden})

	if got := c.Status(); !got.Active || got.RowID != "r1" {
		t.Fatalf("expected r1 session untouched, got %+v", got)
	}
	if !playing.isPlaying() {
		t.Fatal("expected r1 audio to keep playing")
	}
	if carousel.CurrentIndex() != 0 {
		t.Fatal("expected no carousel movement for the empty row")
	}
}

func TestStartingSecondRowSilencesFirst(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	player1 := &fakePlayer{}
	unit1 := playback.NewUnit("S1", "r1", player1, bus, zerolog.Nop())
	defer unit1.Close()
	player2 := &fakePlayer{}
	unit2 := playback.NewUnit("S2", "r2", player2, bus, zerolog.Nop())
	defer unit2.Close()

	c.Start("r1", 0, NewMemoryCarousel(), []models.Slide{slide("S1", 0, "s1.mp3")})
	waitFor(t, "r1 playing", player1.isPlaying)
	player1.SetPosition(4 * time.Second)

	c.Start("r2", 0, NewMemoryCarousel(), []models.Slide{slide("S2", 0, "s2.mp3")})

	waitFor(t, "r2 playing", player2.isPlaying)
	if player1.isPlaying() {
		t.Fatal("expected stopAll to silence the first row")
	}
	if player1.Position() != 0 {
		t.Fatalf("expected stopAll to reset the first row, at %v", player1.Position())
	}
	if got := c.Status(); got.RowID != "r2" {
		t.Fatalf("expected r2 session, got %+v", got)
	}
}

func TestPauseAndResumeKeepTrackAndPosition(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	player := &fakePlayer{}
	unit := playback.NewUnit("B", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	c.Start("r1", 0, NewMemoryCarousel(), []models.Slide{slide("B", 0, "b.mp3")})
	waitFor(t, "B playing", player.isPlaying)
	player.SetPosition(5 * time.Second)

	c.Pause()
	if player.isPlaying() {
		t.Fatal("expected pause to halt playback")
	}
	if got := c.Status(); !got.Active || !got.Paused {
		t.Fatalf("unexpected status while paused: %+v", got)
	}

	c.Resume()
	waitFor(t, "B resumed", player.isPlaying)
	if player.Position() != 5*time.Second {
		t.Fatalf("expected resume from retained position, at %v", player.Position())
	}
	if got := c.Status(); got.Paused || got.ActiveSlideID != "B" {
		t.Fatalf("unexpected status after resume: %+v", got)
	}
}

func TestStopCancelsPendingAdvance(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	playerB := &fakePlayer{}
	playerD := &fakePlayer{}
	unitB := playback.NewUnit("B", "r1", playerB, bus, zerolog.Nop())
	defer unitB.Close()
	unitD := playback.NewUnit("D", "r1", playerD, bus, zerolog.Nop())
	defer unitD.Close()

	slides := []models.Slide{slide("B", 0, "b.mp3"), slide("D", 1, "d.mp3")}
	c.Start("r1", 80*time.Millisecond, NewMemoryCarousel(), slides)
	waitFor(t, "B playing", playerB.isPlaying)

	playerB.finish() // schedules the delayed advance to D
	c.Stop()

	time.Sleep(200 * time.Millisecond)
	if playerD.isPlaying() {
		t.Fatal("stale advance fired after stop")
	}
	if c.Status().Active {
		t.Fatal("expected idle state after stop")
	}
}

func TestPauseCancelsPendingAdvance(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	playerB := &fakePlayer{}
	playerD := &fakePlayer{}
	unitB := playback.NewUnit("B", "r1", playerB, bus, zerolog.Nop())
	defer unitB.Close()
	unitD := playback.NewUnit("D", "r1", playerD, bus, zerolog.Nop())
	defer unitD.Close()

	slides := []models.Slide{slide("B", 0, "b.mp3"), slide("D", 1, "d.mp3")}
	c.Start("r1", 80*time.Millisecond, NewMemoryCarousel(), slides)
	waitFor(t, "B playing", playerB.isPlaying)

	playerB.finish()
	c.Pause()

	time.Sleep(200 * time.Millisecond)
	if playerD.isPlaying() {
		t.Fatal("stale advance fired while paused")
	}
	if got := c.Status(); !got.Active || !got.Paused {
		t.Fatalf("unexpected status: %+v", got)
	}
}

// A display client retrying POST /playlist/ended, or the same completion
// arriving through both the local unit and the inter-instance mirror,
// delivers the same ended event more than once. Only one advance may result.
func TestDuplicateCompletionReportsAdvanceOnce(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	var mu sync.Mutex
	startsForD := 0
	unsub := bus.SubscribePlayback(func(sig signal.Playback) {
		if sig.Action == signal.ActionStart && sig.SlideID == "D" {
			mu.Lock()
			startsForD++
			mu.Unlock()
		}
	})
	defer unsub()

	playerB := &fakePlayer{}
	playerD := &fakePlayer{}
	unitB := playback.NewUnit("B", "r1", playerB, bus, zerolog.Nop())
	defer unitB.Close()
	unitD := playback.NewUnit("D", "r1", playerD, bus, zerolog.Nop())
	defer unitD.Close()

	slides := []models.Slide{slide("B", 0, "b.mp3"), slide("D", 1, "d.mp3")}
	c.Start("r1", 40*time.Millisecond, NewMemoryCarousel(), slides)
	waitFor(t, "B playing", playerB.isPlaying)

	bus.PublishEnded(signal.TrackEnded{SlideID: "B", RowID: "r1"})
	bus.PublishEnded(signal.TrackEnded{SlideID: "B", RowID: "r1"})

	waitFor(t, "advance to D", playerD.isPlaying)
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	got := startsForD
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected exactly one start signal for D, got %d", got)
	}
}

// Completion reports for anything but the active track must not advance the
// session.
func TestEndedEventForInactiveSlideIsIgnored(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	playerB := &fakePlayer{}
	playerD := &fakePlayer{}
	unitB := playback.NewUnit("B", "r1", playerB, bus, zerolog.Nop())
	defer unitB.Close()
	unitD := playback.NewUnit("D", "r1", playerD, bus, zerolog.Nop())
	defer unitD.Close()

	slides := []models.Slide{slide("B", 0, "b.mp3"), slide("D", 1, "d.mp3")}
	c.Start("r1", 0, NewMemoryCarousel(), slides)
	waitFor(t, "B playing", playerB.isPlaying)

	// D is not playing; a stray report for it must change nothing.
	bus.PublishEnded(signal.TrackEnded{SlideID: "D", RowID: "r1"})

	time.Sleep(50 * time.Millisecond)
	if got := c.Status(); !got.Active || got.ActiveSlideID != "B" {
		t.Fatalf("stray completion disturbed the session: %+v", got)
	}
	if !playerB.isPlaying() {
		t.Fatal("expected B to keep playing")
	}
}

func TestStartClampsDelayToConfiguredCeiling(t *testing.T) {
	bus := signal.NewBus()
	c := NewCoordinator(bus, visibility.New(zerolog.Nop()), zerolog.Nop(),
		WithSettleDelay(0),
		WithMaxDelay(50*time.Millisecond),
	)
	t.Cleanup(c.Close)

	playerB := &fakePlayer{}
	playerD := &fakePlayer{}
	unitB := playback.NewUnit("B", "r1", playerB, bus, zerolog.Nop())
	defer unitB.Close()
	unitD := playback.NewUnit("D", "r1", playerD, bus, zerolog.Nop())
	defer unitD.Close()

	slides := []models.Slide{slide("B", 0, "b.mp3"), slide("D", 1, "d.mp3")}
	c.Start("r1", time.Hour, NewMemoryCarousel(), slides)
	waitFor(t, "B playing", playerB.isPlaying)

	playerB.finish()

	// Without the ceiling the advance would sit behind an hour-long timer.
	waitFor(t, "clamped advance to D", playerD.isPlaying)
}

func TestEndedEventsFromOtherRowsAreIgnored(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	player := &fakePlayer{}
	unit := playback.NewUnit("B", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	c.Start("r1", 0, NewMemoryCarousel(), []models.Slide{slide("B", 0, "b.mp3")})
	waitFor(t, "B playing", player.isPlaying)

	bus.PublishEnded(signal.TrackEnded{SlideID: "Z", RowID: "other"})

	time.Sleep(50 * time.Millisecond)
	if got := c.Status(); !got.Active || got.RowID != "r1" || got.ActiveSlideID != "B" {
		t.Fatalf("foreign completion disturbed the session: %+v", got)
	}
}

func TestAdvanceSkipsSlidesHiddenByScheduleAtAdvanceTime(t *testing.T) {
	bus := signal.NewBus()
	c := newTestCoordinator(t, bus)

	playerB := &fakePlayer{}
	playerD := &fakePlayer{}
	unitB := playback.NewUnit("B", "r1", playerB, bus, zerolog.Nop())
	defer unitB.Close()
	unitD := playback.NewUnit("D", "r1", playerD, bus, zerolog.Nop())
	defer unitD.Close()

	hidden := slide("D", 1, "d.mp3")
	hidden.IsPublished = false
	slides := []models.Slide{slide("B", 0, "b.mp3"), hidden}

	c.Start("r1", 0, NewMemoryCarousel(), slides)
	waitFor(t, "B playing", playerB.isPlaying)

	playerB.finish()

	waitFor(t, "session termination", func() bool { return !c.Status().Active })
	if playerD.isPlaying() {
		t.Fatal("hidden slide must never be activated")
	}
}

func TestHistoryRecordsStartedTracks(t *testing.T) {
	bus := signal.NewBus()

	var mu sync.Mutex
	var started []string
	sink := historyFunc(func(rowID, slideID, audioURL string, at time.Time) {
		mu.Lock()
		started = append(started, slideID)
		mu.Unlock()
	})

	c := NewCoordinator(bus, visibility.New(zerolog.Nop()), zerolog.Nop(),
		WithSettleDelay(0),
		WithHistory(sink),
	)
	t.Cleanup(c.Close)

	player := &fakePlayer{}
	unit := playback.NewUnit("B", "r1", player, bus, zerolog.Nop())
	defer unit.Close()

	c.Start("r1", 0, NewMemoryCarousel(), []models.Slide{slide("B", 0, "b.mp3")})
	waitFor(t, "history entry", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(started) == 1 && started[0] == "B"
	})
}

type historyFunc func(rowID, slideID, audioURL string, at time.Time)

func (f historyFunc) RecordStart(rowID, slideID, audioURL string, at time.Time) {
	f(rowID, slideID, audioURL, at)
}
