/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quietloom/slidecast/internal/models"
)

// Scheduling fields are accepted as-is. The visibility filter treats malformed
// values as unrestricted, so a bad clock string degrades to "always shown"
// rather than hiding content; we reject only values that are not strings.
type slideRequest struct {
	Position         *int    `json:"position"`
	Title            *string `json:"title"`
	Body             *string `json:"body"`
	ImageURL         *string `json:"image_url"`
	AudioURL         *string `json:"audio_url"`
	IsPublished      *bool   `json:"is_published"`
	PublishTimeStart *string `json:"publish_time_start"`
	PublishTimeEnd   *string `json:"publish_time_end"`
	PublishDays      *string `json:"publish_days"`
}

func (a *API) handleSlidesCreate(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	var row models.Row
	result := a.db.WithContext(r.Context()).First(&row, "id = ?", rowID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "row_not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var req slideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	slide := models.Slide{
		ID:          uuid.NewString(),
		RowID:       rowID,
		IsPublished: true,
	}
	applySlideRequest(&slide, req)

	if slide.Position == 0 && req.Position == nil {
		// Append to the end of the row by default.
		var maxPos int
		a.db.WithContext(r.Context()).Model(&models.Slide{}).
			Where("row_id = ?", rowID).
			Select("COALESCE(MAX(position), -1)").Scan(&maxPos)
		slide.Position = maxPos + 1
	}

	if err := a.db.WithContext(r.Context()).Create(&slide).Error; err != nil {
		a.logger.Error().Err(err).Msg("create slide failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateRow(r, rowID)
	a.logger.Info().Str("slide_id", slide.ID).Str("row_id", rowID).Msg("slide created")
	writeJSON(w, http.StatusCreated, slide)
}

func (a *API) handleSlidesGet(w http.ResponseWriter, r *http.Request) {
	slideID := chi.URLParam(r, "slideID")

	var slide models.Slide
	result := a.db.WithContext(r.Context()).First(&slide, "id = ?", slideID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, slide)
}

func (a *API) handleSlidesUpdate(w http.ResponseWriter, r *http.Request) {
	slideID := chi.URLParam(r, "slideID")

	var slide models.Slide
	result := a.db.WithContext(r.Context()).First(&slide, "id = ?", slideID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var req slideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	applySlideRequest(&slide, req)

	if err := a.db.WithContext(r.Context()).Save(&slide).Error; err != nil {
		a.logger.Error().Err(err).Msg("update slide failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateRow(r, slide.RowID)
	writeJSON(w, http.StatusOK, slide)
}

func (a *API) handleSlidesDelete(w http.ResponseWriter, r *http.Request) {
	slideID := chi.URLParam(r, "slideID")

	var slide models.Slide
	result := a.db.WithContext(r.Context()).First(&slide, "id = ?", slideID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(&slide).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateRow(r, slide.RowID)
	a.logger.Info().Str("slide_id", slideID).Msg("slide deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleSlidesTempUnpublish hides a slide until the given time without
// touching its publish flag or schedule. Duration zero clears the hold.
func (a *API) handleSlidesTempUnpublish(w http.ResponseWriter, r *http.Request) {
	slideID := chi.URLParam(r, "slideID")

	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Minutes < 0 {
		writeError(w, http.StatusBadRequest, "invalid_minutes")
		return
	}

	var slide models.Slide
	result := a.db.WithContext(r.Context()).First(&slide, "id = ?", slideID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if req.Minutes == 0 {
		slide.TempUnpublishUntil = nil
	} else {
		until := time.Now().Add(time.Duration(req.Minutes) * time.Minute)
		slide.TempUnpublishUntil = &until
	}

	if err := a.db.WithContext(r.Context()).Save(&slide).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateRow(r, slide.RowID)
	writeJSON(w, http.StatusOK, slide)
}

func applySlideRequest(slide *models.Slide, req slideRequest) {
	if req.Position != nil {
		slide.Position = *req.Position
	}
	if req.Title != nil {
		slide.Title = *req.Title
	}
	if req.Body != nil {
		slide.Body = *req.Body
	}
	if req.ImageURL != nil {
		slide.ImageURL = *req.ImageURL
	}
	if req.AudioURL != nil {
		slide.AudioURL = *req.AudioURL
	}
	if req.IsPublished != nil {
		slide.IsPublished = *req.IsPublished
	}
	if req.PublishTimeStart != nil {
		slide.PublishTimeStart = *req.PublishTimeStart
	}
	if req.PublishTimeEnd != nil {
		slide.PublishTimeEnd = *req.PublishTimeEnd
	}
	if req.PublishDays != nil {
		slide.PublishDays = *req.PublishDays
	}
}
