/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist drives a row's carousel in lockstep with audio playback
// completion. One session may be active process-wide; starting a session for
// another row force-terminates the previous one.
package playlist

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietloom/slidecast/internal/models"
	"github.com/quietloom/slidecast/internal/signal"
	"github.com/quietloom/slidecast/internal/telemetry"
	"github.com/quietloom/slidecast/internal/visibility"
)

// Carousel exposes the pager the coordinator steers. Indices address the
// visible subset of the session's slides. MoveTo triggers a transition the
// coordinator treats as settled after a short fixed delay.
type Carousel interface {
	CurrentIndex() int
	MoveTo(index int)
}

// History receives a record for every track the coordinator starts.
type History interface {
	RecordStart(rowID, slideID, audioURL string, at time.Time)
}

// MaxDelay is the default upper bound for the inter-track delay; deployments
// can lower or raise it with WithMaxDelay.
const MaxDelay = 45 * time.Second

// session is the per-row runtime state while a playlist is active. The slide
// list is captured at Start and kept for the session lifetime; the visible
// subset is re-derived from it on every advance.
type session struct {
	rowID         string
	slides        []models.Slide
	carousel      Carousel
	delay         time.Duration
	paused        bool
	activeSlideID string
	timer         *time.Timer
}

// Status reports coordinator state for the control API.
type Status struct {
	Active        bool   `json:"active"`
	Paused        bool   `json:"paused"`
	RowID         string `json:"row_id,omitempty"`
	ActiveSlideID string `json:"active_slide_id,omitempty"`
}

// Coordinator is the per-row playlist state machine. All signal traffic goes
// through the bus; the coordinator never touches a media element directly.
type Coordinator struct {
	bus      *signal.Bus
	filter   *visibility.Filter
	logger   zerolog.Logger
	now      func() time.Time
	settle   time.Duration
	maxDelay time.Duration
	history  History

	mu      sync.Mutex
	gen     int // invalidates timers from superseded sessions
	session *session

	unsubEnded func()
}

// Option tunes a Coordinator.
type Option func(*Coordinator)

// WithClock injects the wall clock used for visibility evaluation.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithSettleDelay sets the wait after a carousel move before the start
// signal is broadcast.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.settle = d
		}
	}
}

// WithMaxDelay overrides the inter-track delay ceiling.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithHistory installs a play history sink.
func WithHistory(h History) Option {
	return func(c *Coordinator) { c.history = h }
}

// NewCoordinator creates a coordinator and mounts it on the bus.
func NewCoordinator(bus *signal.Bus, filter *visibility.Filter, logger zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		bus:      bus,
		filter:   filter,
		logger:   logger,
		now:      time.Now,
		settle:   600 * time.Millisecond,
		maxDelay: MaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unsubEnded = bus.SubscribeEnded(c.onTrackEnded)
	return c
}

// Close unmounts the coordinator and terminates any session.
func (c *Coordinator) Close() {
	c.Stop()
	if c.unsubEnded != nil {
		c.unsubEnded()
	}
}

// MaxDelay returns the inter-track delay ceiling; the HTTP layer validates
// request and row delays against it.
func (c *Coordinator) MaxDelay() time.Duration {
	return c.maxDelay
}

// Status returns the current session state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Status{}
	}
	return Status{
		Active:        true,
		Paused:        c.session.paused,
		RowID:         c.session.rowID,
		ActiveSlideID: c.session.activeSlideID,
	}
}

// Start begins a playlist session for the row. Any previously active session
// is pre-empted with stopAll. If no visible slide in the row carries audio,
// Start is a no-op: nothing is moved, nothing is broadcast, and an existing
// session keeps running.
func (c *Coordinator) Start(rowID string, delay time.Duration, carousel Carousel, slides []models.Slide) {
	if delay < 0 {
		delay = 0
	}
	if delay > c.maxDelay {
		delay = c.maxDelay
	}

	visible := c.filter.FilterVisible(slides, c.now())
	firstAudio := -1
	for i, slide := range visible {
		if slide.HasAudio() {
			firstAudio = i
			break
		}
	}
	if firstAudio == -1 {
		c.logger.Info().Str("row", rowID).Msg("no visible audio slides, nothing to play")
		return
	}

	c.mu.Lock()
	c.cancelTimerLocked()
	c.gen++
	gen := c.gen
	c.session = &session{
		rowID:    rowID,
		slides:   slides,
		carousel: carousel,
		delay:    delay,
	}
	c.mu.Unlock()

	// Guarantee cross-row silence even if the previous row's own stop logic
	// was skipped.
	c.bus.PublishPlayback(signal.Playback{Action: signal.ActionStopAll})

	telemetry.PlaylistSessionsStarted.Inc()
	telemetry.PlaylistSessionsActive.Set(1)
	c.logger.Info().Str("row", rowID).Dur("delay", delay).Msg("playlist session started")

	index := carousel.CurrentIndex()
	if index < 0 || index >= len(visible) {
		index = 0
	}
	if current := visible[index]; current.HasAudio() {
		c.activate(gen, current)
		return
	}

	c.moveAndActivate(gen, firstAudio, visible[firstAudio])
}

// Pause suspends the active session, cancelling any pending advance. The
// pause signal is slide-agnostic: whichever unit is playing reacts.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	sess := c.session
	if sess == nil || sess.paused {
		c.mu.Unlock()
		return
	}
	c.cancelTimerLocked()
	sess.paused = true
	rowID := sess.rowID
	c.mu.Unlock()

	c.bus.PublishPlayback(signal.Playback{Action: signal.ActionPause, RowID: rowID})
	c.logger.Debug().Str("row", rowID).Msg("playlist paused")
}

// Resume continues a paused session. The active slide is re-derived from the
// carousel position; playback continues from the retained position rather
// than restarting the track.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	sess := c.session
	if sess == nil || !sess.paused {
		c.mu.Unlock()
		return
	}
	sess.paused = false

	visible := c.filter.FilterVisible(sess.slides, c.now())
	index := sess.carousel.CurrentIndex()
	var target models.Slide
	if index >= 0 && index < len(visible) && visible[index].HasAudio() {
		target = visible[index]
		sess.activeSlideID = target.ID
	}
	rowID := sess.rowID
	c.mu.Unlock()

	if target.ID != "" {
		c.bus.PublishPlayback(signal.Playback{Action: signal.ActionResume, SlideID: target.ID, RowID: rowID})
	}
	c.logger.Debug().Str("row", rowID).Msg("playlist resumed")
}

// Stop terminates the session from any non-idle state.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	rowID, stopped := c.stopLocked()
	c.mu.Unlock()

	if !stopped {
		return
	}
	c.bus.PublishPlayback(signal.Playback{Action: signal.ActionStop, RowID: rowID})
	telemetry.PlaylistSessionsActive.Set(0)
	c.logger.Info().Str("row", rowID).Msg("playlist session stopped")
}

// stopLocked clears session state and invalidates pending timers. The caller
// holds c.mu and broadcasts the stop signal after releasing it.
func (c *Coordinator) stopLocked() (string, bool) {
	sess := c.session
	if sess == nil {
		return "", false
	}
	c.cancelTimerLocked()
	c.gen++
	c.session = nil
	return sess.rowID, true
}

// onTrackEnded advances the session when the active row reports completion.
// Events from other rows, for slides other than the active one, or while
// paused or idle, are ignored.
func (c *Coordinator) onTrackEnded(ev signal.TrackEnded) {
	c.mu.Lock()
	sess := c.session
	if sess == nil || sess.paused || sess.rowID != ev.RowID {
		c.mu.Unlock()
		return
	}
	// Only the active track's completion advances the session. Accepting a
	// report clears activeSlideID below, so duplicates (a client retrying
	// its report, or the same completion arriving through both the local
	// unit and the event mirror) find nothing to match and are dropped.
	if sess.activeSlideID == "" || sess.activeSlideID != ev.SlideID {
		c.mu.Unlock()
		return
	}
	gen := c.gen

	// Re-derive the visible subset from the captured list; slides without
	// audio are transparent when choosing the successor.
	visible := c.filter.FilterVisible(sess.slides, c.now())
	endedPos, known := slidePosition(sess.slides, ev.SlideID)

	targetIndex := -1
	var target models.Slide
	for i, slide := range visible {
		if !slide.HasAudio() {
			continue
		}
		if known && slide.Position <= endedPos {
			continue
		}
		if !known && slide.ID == ev.SlideID {
			continue
		}
		targetIndex = i
		target = slide
		break
	}

	if targetIndex == -1 {
		// Sequence exhausted; no wraparound.
		rowID, _ := c.stopLocked()
		c.mu.Unlock()

		c.bus.PublishPlayback(signal.Playback{Action: signal.ActionStop, RowID: rowID})
		telemetry.PlaylistSessionsActive.Set(0)
		c.logger.Info().Str("row", rowID).Msg("playlist sequence exhausted")
		return
	}

	c.cancelTimerLocked()
	sess.activeSlideID = ""

	delay := sess.delay
	index := targetIndex
	slide := target
	sess.timer = time.AfterFunc(delay, func() {
		c.moveAndActivate(gen, index, slide)
	})
	c.mu.Unlock()
}

// moveAndActivate relocates the carousel and, after the settle delay,
// broadcasts the start signal. Both steps abort if the session was stopped,
// paused, or superseded in the meantime.
func (c *Coordinator) moveAndActivate(gen int, index int, slide models.Slide) {
	c.mu.Lock()
	if gen != c.gen || c.session == nil || c.session.paused {
		c.mu.Unlock()
		return
	}
	carousel := c.session.carousel
	c.mu.Unlock()

	carousel.MoveTo(index)

	c.mu.Lock()
	if gen != c.gen || c.session == nil || c.session.paused {
		c.mu.Unlock()
		return
	}
	c.session.timer = time.AfterFunc(c.settle, func() {
		c.activate(gen, slide)
	})
	c.mu.Unlock()
}

// activate names the slide as the session's active track and broadcasts its
// start signal.
func (c *Coordinator) activate(gen int, slide models.Slide) {
	c.mu.Lock()
	if gen != c.gen || c.session == nil || c.session.paused {
		c.mu.Unlock()
		return
	}
	c.session.activeSlideID = slide.ID
	rowID := c.session.rowID
	c.mu.Unlock()

	c.bus.PublishPlayback(signal.Playback{Action: signal.ActionStart, SlideID: slide.ID, RowID: rowID})
	telemetry.PlaylistTracksStarted.Inc()
	if c.history != nil {
		c.history.RecordStart(rowID, slide.ID, slide.AudioURL, c.now())
	}
}

// cancelTimerLocked stops any pending advance or settle timer so a stale
// callback cannot fire after stop, pause, or pre-emption.
func (c *Coordinator) cancelTimerLocked() {
	if c.session != nil && c.session.timer != nil {
		c.session.timer.Stop()
		c.session.timer = nil
	}
}

func slidePosition(slides []models.Slide, slideID string) (int, bool) {
	for _, slide := range slides {
		if slide.ID == slideID {
			return slide.Position, true
		}
	}
	return 0, false
}
