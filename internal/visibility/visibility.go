/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package visibility decides whether a slide is currently eligible for
// display and playback. Evaluation is a pure function of the slide's
// scheduling fields and the supplied wall-clock instant; malformed fields
// fail open so a data error never hides content.
package visibility

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietloom/slidecast/internal/models"
)

// Filter evaluates slide scheduling rules.
type Filter struct {
	logger zerolog.Logger
}

// New creates a visibility filter.
func New(logger zerolog.Logger) *Filter {
	return &Filter{logger: logger}
}

// IsVisibleNow reports whether the slide is eligible at the given instant.
// now is evaluated in its own location; callers pass viewer-local time.
func (f *Filter) IsVisibleNow(slide models.Slide, now time.Time) bool {
	if !slide.IsPublished {
		return false
	}

	// Temporary unpublish wins over every day/time rule.
	if slide.TempUnpublishUntil != nil && now.Before(*slide.TempUnpublishUntil) {
		return false
	}

	if days, ok := f.parseDays(slide); ok && len(days) > 0 {
		if _, allowed := days[int(now.Weekday())]; !allowed {
			return false
		}
	}

	if slide.PublishTimeStart == "" && slide.PublishTimeEnd == "" {
		return true
	}

	start, end, ok := f.parseWindow(slide)
	if !ok {
		// Fail open: a malformed bound never hides the slide.
		return true
	}

	minute := now.Hour()*60 + now.Minute()
	if start > end {
		// Overnight window wrapping past midnight.
		return minute >= start || minute < end
	}
	return minute >= start && minute < end
}

// FilterVisible returns the slides eligible at the given instant, preserving
// the original order of the input.
func (f *Filter) FilterVisible(slides []models.Slide, now time.Time) []models.Slide {
	visible := make([]models.Slide, 0, len(slides))
	for _, slide := range slides {
		if f.IsVisibleNow(slide, now) {
			visible = append(visible, slide)
		}
	}
	return visible
}

// parseDays parses the comma separated weekday set. ok is false when the
// field is malformed, in which case the day rule is skipped entirely.
func (f *Filter) parseDays(slide models.Slide) (map[int]struct{}, bool) {
	raw := strings.TrimSpace(slide.PublishDays)
	if raw == "" {
		return nil, true
	}

	days := make(map[int]struct{})
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		day, err := strconv.Atoi(token)
		if err != nil || day < 0 || day > 6 {
			f.logAnomaly(slide, "publish_days", raw)
			return nil, false
		}
		days[day] = struct{}{}
	}
	return days, true
}

// parseWindow resolves the time-of-day bounds to minutes since midnight.
// A missing start defaults to 00:00 and a missing end to 23:59.
func (f *Filter) parseWindow(slide models.Slide) (int, int, bool) {
	start := 0
	end := 23*60 + 59

	if slide.PublishTimeStart != "" {
		parsed, err := parseClock(slide.PublishTimeStart)
		if err != nil {
			f.logAnomaly(slide, "publish_time_start", slide.PublishTimeStart)
			return 0, 0, false
		}
		start = parsed
	}
	if slide.PublishTimeEnd != "" {
		parsed, err := parseClock(slide.PublishTimeEnd)
		if err != nil {
			f.logAnomaly(slide, "publish_time_end", slide.PublishTimeEnd)
			return 0, 0, false
		}
		end = parsed
	}
	return start, end, true
}

func parseClock(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("malformed hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("malformed minute in %q", value)
	}
	return hour*60 + minute, nil
}

func (f *Filter) logAnomaly(slide models.Slide, field, value string) {
	f.logger.Warn().
		Str("slide_id", slide.ID).
		Str("field", field).
		Str("value", value).
		Msg("malformed schedule field, treating as unrestricted")
}
