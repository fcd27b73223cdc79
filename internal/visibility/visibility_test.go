/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package visibility

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietloom/slidecast/internal/models"
)

// 2026-08-28 is a Friday (weekday 5); 2026-08-30 is a Sunday (weekday 0).
func at(day int, hour, minute int) time.Time {
	return time.Date(2026, 8, day, hour, minute, 0, 0, time.UTC)
}

func published(mutate func(*models.Slide)) models.Slide {
	slide := models.Slide{ID: "s1", IsPublished: true}
	if mutate != nil {
		mutate(&slide)
	}
	return slide
}

func TestIsVisibleNow(t *testing.T) {
	future := at(29, 0, 0)
	past := at(27, 0, 0)

	tests := []struct {
		name    string
		slide   models.Slide
		now     time.Time
		visible bool
	}{
		{
			name:    "unpublished is never visible",
			slide:   models.Slide{ID: "s1", IsPublished: false, PublishDays: "5", PublishTimeStart: "00:00"},
			now:     at(28, 12, 0),
			visible: false,
		},
		{
			name:    "temp unpublish in the future hides regardless of windows",
			slide:   published(func(s *models.Slide) { s.TempUnpublishUntil = &future }),
			now:     at(28, 12, 0),
			visible: false,
		},
		{
			name:    "temp unpublish in the past has no effect",
			slide:   published(func(s *models.Slide) { s.TempUnpublishUntil = &past }),
			now:     at(28, 12, 0),
			visible: true,
		},
		{
			name:    "no restrictions means visible",
			slide:   published(nil),
			now:     at(28, 12, 0),
			visible: true,
		},
		{
			name:    "allowed weekday",
			slide:   published(func(s *models.Slide) { s.PublishDays = "1,3,5" }),
			now:     at(28, 12, 0), // Friday
			visible: true,
		},
		{
			name:    "disallowed weekday",
			slide:   published(func(s *models.Slide) { s.PublishDays = "1,3,5" }),
			now:     at(30, 12, 0), // Sunday
			visible: false,
		},
		{
			name:    "same-day window inside",
			slide:   published(func(s *models.Slide) { s.PublishTimeStart = "09:00"; s.PublishTimeEnd = "17:00" }),
			now:     at(28, 12, 0),
			visible: true,
		},
		{
			name:    "same-day window before start",
			slide:   published(func(s *models.Slide) { s.PublishTimeStart = "09:00"; s.PublishTimeEnd = "17:00" }),
			now:     at(28, 8, 59),
			visible: false,
		},
		{
			name:    "same-day window end is exclusive",
			slide:   published(func(s *models.Slide) { s.PublishTimeStart = "09:00"; s.PublishTimeEnd = "17:00" }),
			now:     at(28, 17, 0),
			visible: false,
		},
		{
			name:    "overnight window late evening",
			slide:   published(func(s *models.Slide) { s.PublishTimeStart = "22:00"; s.PublishTimeEnd = "03:00" }),
			now:     at(28, 23, 30),
			visible: true,
		},
		{
			name:    "overnight window after midnight",
			slide:   published(func(s *models.Slide) { s.PublishTimeStart = "22:00"; s.PublishTimeEnd = "03:00" }),
			now:     at(28, 1, 0),
			visible: true,
		},
		{
			name:    "overnight window midday",
			slide:   published(func(s *models.Slide) { s.PublishTimeStart = "22:00"; s.PublishTimeEnd = "03:00" }),
			now:     at(28, 12, 0),
			visible: false,
		},
		{
			name:    "missing end defaults to 23:59 exclusive",
			slide:   published(func(s *models.Slide) { s.PublishTimeStart = "23:00" }),
			now:     at(28, 23, 59),
			visible: false,
		},
		{
			name:    "missing start defaults to midnight",
			slide:   published(func(s *models.Slide) { s.PublishTimeEnd = "06:00" }),
			now:     at(28, 0, 0),
			visible: true,
		},
		{
			name:    "malformed day set fails open",
			slide:   published(func(s *models.Slide) { s.PublishDays = "mon,tue" }),
			now:     at(30, 12, 0),
			visible: true,
		},
		{
			name:    "malformed time bound fails open",
			slide:   published(func(s *models.Slide) { s.PublishTimeStart = "9am"; s.PublishTimeEnd = "17:00" }),
			now:     at(28, 3, 0),
			visible: true,
		},
		{
			name:    "out of range day fails open",
			slide:   published(func(s *models.Slide) { s.PublishDays = "7" }),
			now:     at(30, 12, 0),
			visible: true,
		},
	}

	filter := New(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.IsVisibleNow(tt.slide, tt.now); got != tt.visible {
				t.Errorf("IsVisibleNow() = %v, want %v", got, tt.visible)
			}
		})
	}
}

func TestIsVisibleNowIsIdempotent(t *testing.T) {
	filter := New(zerolog.Nop())
	slide := published(func(s *models.Slide) { s.PublishTimeStart = "22:00"; s.PublishTimeEnd = "03:00" })
	now := at(28, 23, 30)

	first := filter.IsVisibleNow(slide, now)
	for i := 0; i < 10; i++ {
		if filter.IsVisibleNow(slide, now) != first {
			t.Fatal("repeated evaluation at the same instant changed result")
		}
	}
}

func TestFilterVisiblePreservesOrder(t *testing.T) {
	filter := New(zerolog.Nop())
	slides := []models.Slide{
		{ID: "a", IsPublished: true},
		{ID: "b", IsPublished: false},
		{ID: "c", IsPublished: true},
		{ID: "d", IsPublished: true, PublishTimeStart: "09:00", PublishTimeEnd: "10:00"},
		{ID: "e", IsPublished: true},
	}

	visible := filter.FilterVisible(slides, at(28, 12, 0))

	want := []string{"a", "c", "e"}
	if len(visible) != len(want) {
		t.Fatalf("FilterVisible() returned %d slides, want %d", len(visible), len(want))
	}
	for i, id := range want {
		if visible[i].ID != id {
			t.Errorf("visible[%d] = %q, want %q", i, visible[i].ID, id)
		}
	}
}
