/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/quietloom/slidecast/internal/models"
)

// Recorder persists play history rows. Failures are logged and never block
// the coordinator.
type Recorder struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRecorder creates a history recorder.
func NewRecorder(db *gorm.DB, logger zerolog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// RecordStart stores one started track.
func (r *Recorder) RecordStart(rowID, slideID, audioURL string, at time.Time) {
	entry := models.PlayHistory{
		ID:        uuid.NewString(),
		RowID:     rowID,
		SlideID:   slideID,
		AudioURL:  audioURL,
		StartedAt: at,
	}
	if err := r.db.Create(&entry).Error; err != nil {
		r.logger.Warn().Err(err).Str("row", rowID).Str("slide", slideID).Msg("record play history failed")
	}
}
