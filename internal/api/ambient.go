/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quietloom/slidecast/internal/cache"
	"github.com/quietloom/slidecast/internal/models"
)

// handleAmbientList returns enabled ambient tracks in playback order. These
// are background loops offered to viewers independently of any playlist.
func (a *API) handleAmbientList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if a.cache != nil {
		if cached, ok := a.cache.GetAmbientList(ctx); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	var tracks []models.AmbientTrack
	if err := a.db.WithContext(ctx).Where("enabled = ?", true).Order("position ASC").Find(&tracks).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]cache.CachedAmbientTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, cache.CachedAmbientTrack{
			ID:       t.ID,
			Title:    t.Title,
			AudioURL: t.AudioURL,
			Position: t.Position,
		})
	}

	if a.cache != nil {
		_ = a.cache.SetAmbientList(ctx, out)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleAmbientCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		AudioURL string `json:"audio_url"`
		Position int    `json:"position"`
		Enabled  *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Title == "" || req.AudioURL == "" {
		writeError(w, http.StatusBadRequest, "title_and_audio_url_required")
		return
	}

	track := models.AmbientTrack{
		ID:       uuid.NewString(),
		Title:    req.Title,
		AudioURL: req.AudioURL,
		Position: req.Position,
		Enabled:  true,
	}
	if req.Enabled != nil {
		track.Enabled = *req.Enabled
	}

	if err := a.db.WithContext(r.Context()).Create(&track).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateAmbient(r)
	writeJSON(w, http.StatusCreated, track)
}

func (a *API) handleAmbientUpdate(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	var track models.AmbientTrack
	result := a.db.WithContext(r.Context()).First(&track, "id = ?", trackID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var req struct {
		Title    *string `json:"title"`
		AudioURL *string `json:"audio_url"`
		Position *int    `json:"position"`
		Enabled  *bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.Title != nil {
		track.Title = *req.Title
	}
	if req.AudioURL != nil {
		track.AudioURL = *req.AudioURL
	}
	if req.Position != nil {
		track.Position = *req.Position
	}
	if req.Enabled != nil {
		track.Enabled = *req.Enabled
	}

	if err := a.db.WithContext(r.Context()).Save(&track).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateAmbient(r)
	writeJSON(w, http.StatusOK, track)
}

func (a *API) handleAmbientDelete(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	result := a.db.WithContext(r.Context()).Delete(&models.AmbientTrack{}, "id = ?", trackID)
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	a.invalidateAmbient(r)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) invalidateAmbient(r *http.Request) {
	if a.cache != nil {
		_ = a.cache.InvalidateAmbientList(r.Context())
	}
}
