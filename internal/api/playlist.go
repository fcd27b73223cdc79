/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/quietloom/slidecast/internal/models"
	"github.com/quietloom/slidecast/internal/signal"
)

// handlePlaylistStart begins a playlist session for the row. The inter-track
// delay comes from the request, falling back to the row's configured value.
func (a *API) handlePlaylistStart(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	var row models.Row
	result := a.db.WithContext(r.Context()).First(&row, "id = ?", rowID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	delaySeconds := row.PlaylistDelaySeconds
	var req struct {
		DelaySeconds *int `json:"delay_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.DelaySeconds != nil {
		delaySeconds = *req.DelaySeconds
	}
	if delaySeconds < 0 || time.Duration(delaySeconds)*time.Second > a.coordinator.MaxDelay() {
		writeError(w, http.StatusBadRequest, "invalid_delay")
		return
	}

	var slides []models.Slide
	if err := a.db.WithContext(r.Context()).Where("row_id = ?", rowID).Order("position ASC").Find(&slides).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.coordinator.Start(rowID, time.Duration(delaySeconds)*time.Second, a.carouselFor(rowID), slides)
	writeJSON(w, http.StatusOK, a.coordinator.Status())
}

func (a *API) handlePlaylistPause(w http.ResponseWriter, r *http.Request) {
	a.coordinator.Pause()
	writeJSON(w, http.StatusOK, a.coordinator.Status())
}

func (a *API) handlePlaylistResume(w http.ResponseWriter, r *http.Request) {
	a.coordinator.Resume()
	writeJSON(w, http.StatusOK, a.coordinator.Status())
}

func (a *API) handlePlaylistStop(w http.ResponseWriter, r *http.Request) {
	a.coordinator.Stop()
	writeJSON(w, http.StatusOK, a.coordinator.Status())
}

func (a *API) handlePlaylistStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.coordinator.Status())
}

// handlePlaylistEnded accepts completion reports from display clients, whose
// media elements run in the browser rather than in this process.
func (a *API) handlePlaylistEnded(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlideID string `json:"slide_id"`
		RowID   string `json:"row_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.SlideID == "" || req.RowID == "" {
		writeError(w, http.StatusBadRequest, "slide_id_and_row_id_required")
		return
	}

	a.bus.PublishEnded(signal.TrackEnded{SlideID: req.SlideID, RowID: req.RowID})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

func (a *API) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	query := a.db.WithContext(r.Context()).Order("started_at DESC").Limit(limit)
	if rowID := r.URL.Query().Get("row_id"); rowID != "" {
		query = query.Where("row_id = ?", rowID)
	}

	var entries []models.PlayHistory
	if err := query.Find(&entries).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
