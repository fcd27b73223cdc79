/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quietloom/slidecast/internal/cache"
	"github.com/quietloom/slidecast/internal/models"
)

func (a *API) handleRowsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if a.cache != nil {
		if cached, ok := a.cache.GetRowList(ctx); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	var rows []models.Row
	if err := a.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		a.logger.Error().Err(err).Msg("list rows failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]cache.CachedRow, 0, len(rows))
	for _, row := range rows {
		var count int64
		a.db.WithContext(ctx).Model(&models.Slide{}).Where("row_id = ?", row.ID).Count(&count)
		out = append(out, cache.CachedRow{
			ID:                   row.ID,
			Name:                 row.Name,
			Slug:                 row.Slug,
			Description:          row.Description,
			PlaylistDelaySeconds: row.PlaylistDelaySeconds,
			Position:             row.Position,
			SlideCount:           int(count),
		})
	}

	if a.cache != nil {
		_ = a.cache.SetRowList(ctx, out)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleRowsCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                 string `json:"name"`
		Description          string `json:"description"`
		PlaylistDelaySeconds int    `json:"playlist_delay_seconds"`
		Position             int    `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.PlaylistDelaySeconds < 0 || time.Duration(req.PlaylistDelaySeconds)*time.Second > a.coordinator.MaxDelay() {
		writeError(w, http.StatusBadRequest, "invalid_delay")
		return
	}

	row := models.Row{
		ID:                   uuid.NewString(),
		Name:                 req.Name,
		Slug:                 slugify(req.Name),
		Description:          req.Description,
		PlaylistDelaySeconds: req.PlaylistDelaySeconds,
		Position:             req.Position,
	}

	if err := a.db.WithContext(r.Context()).Create(&row).Error; err != nil {
		a.logger.Error().Err(err).Msg("create row failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateRow(r, row.ID)
	a.logger.Info().Str("row_id", row.ID).Str("slug", row.Slug).Msg("row created")
	writeJSON(w, http.StatusCreated, row)
}

func (a *API) handleRowsGet(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	var row models.Row
	result := a.db.WithContext(r.Context()).Preload("Slides", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&row, "id = ?", rowID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		a.logger.Error().Err(result.Error).Msg("get row failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleRowsUpdate(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Name                 *string `json:"name"`
		Description          *string `json:"description"`
		PlaylistDelaySeconds *int    `json:"playlist_delay_seconds"`
		Position             *int    `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name_required")
			return
		}
		row.Name = *req.Name
		row.Slug = slugify(*req.Name)
	}
	if req.Description != nil {
		row.Description = *req.Description
	}
	if req.PlaylistDelaySeconds != nil {
		if *req.PlaylistDelaySeconds < 0 || time.Duration(*req.PlaylistDelaySeconds)*time.Second > a.coordinator.MaxDelay() {
			writeError(w, http.StatusBadRequest, "invalid_delay")
			return
		}
		row.PlaylistDelaySeconds = *req.PlaylistDelaySeconds
	}
	if req.Position != nil {
		row.Position = *req.Position
	}

	if err := a.db.WithContext(r.Context()).Save(&row).Error; err != nil {
		a.logger.Error().Err(err).Msg("update row failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateRow(r, row.ID)
	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleRowsDelete(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	tx := a.db.WithContext(r.Context()).Begin()
	if err := tx.Where("row_id = ?", rowID).Delete(&models.Slide{}).Error; err != nil {
		tx.Rollback()
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	result := tx.Delete(&models.Row{}, "id = ?", rowID)
	if result.Error != nil {
		tx.Rollback()
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	tx.Commit()

	// A running session for the deleted row keeps its captured slide list;
	// stop it rather than let it play orphaned content.
	if status := a.coordinator.Status(); status.Active && status.RowID == rowID {
		a.coordinator.Stop()
	}

	a.invalidateRow(r, rowID)
	a.logger.Info().Str("row_id", rowID).Msg("row deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleRowSlidesList returns every slide in the row, including currently
// hidden ones. This is the editor view.
func (a *API) handleRowSlidesList(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	slides, ok := a.loadRowSlides(w, r, rowID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, slides)
}

// handleRowSlidesVisible returns only the slides eligible right now, in
// carousel order. This is what display clients render.
func (a *API) handleRowSlidesVisible(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	slides, ok := a.loadRowSlides(w, r, rowID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.filter.FilterVisible(slides, time.Now()))
}

func (a *API) handlePublicRowSlides(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var row models.Row
	result := a.db.WithContext(r.Context()).First(&row, "slug = ?", slug)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	slides, ok := a.loadRowSlides(w, r, row.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.filter.FilterVisible(slides, time.Now()))
}

func (a *API) handleCarouselReport(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Index < 0 {
		writeError(w, http.StatusBadRequest, "invalid_index")
		return
	}

	a.carouselFor(rowID).report(req.Index)
	w.WriteHeader(http.StatusNoContent)
}

// loadRowSlides fetches the ordered slide list for a row, going through the
// cache when available. Writes the error response itself on failure.
func (a *API) loadRowSlides(w http.ResponseWriter, r *http.Request, rowID string) ([]models.Slide, bool) {
	ctx := r.Context()

	if a.cache != nil {
		if cached, ok := a.cache.GetRowSlides(ctx, rowID); ok {
			slides := make([]models.Slide, 0, len(cached))
			for _, s := range cached {
				slides = append(slides, models.Slide{
					ID:                 s.ID,
					RowID:              s.RowID,
					Position:           s.Position,
					Title:              s.Title,
					Body:               s.Body,
					ImageURL:           s.ImageURL,
					AudioURL:           s.AudioURL,
					IsPublished:        s.IsPublished,
					PublishTimeStart:   s.PublishTimeStart,
					PublishTimeEnd:     s.PublishTimeEnd,
					PublishDays:        s.PublishDays,
					TempUnpublishUntil: s.TempUnpublishUntil,
				})
			}
			return slides, true
		}
	}

	var slides []models.Slide
	if err := a.db.WithContext(ctx).Where("row_id = ?", rowID).Order("position ASC").Find(&slides).Error; err != nil {
		a.logger.Error().Err(err).Str("row_id", rowID).Msg("list slides failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}

	if a.cache != nil {
		cached := make([]cache.CachedSlide, 0, len(slides))
		for _, s := range slides {
			cached = append(cached, cache.CachedSlide{
				ID:                 s.ID,
				RowID:              s.RowID,
				Position:           s.Position,
				Title:              s.Title,
				Body:               s.Body,
				ImageURL:           s.ImageURL,
				AudioURL:           s.AudioURL,
				IsPublished:        s.IsPublished,
				PublishTimeStart:   s.PublishTimeStart,
				PublishTimeEnd:     s.PublishTimeEnd,
				PublishDays:        s.PublishDays,
				TempUnpublishUntil: s.TempUnpublishUntil,
			})
		}
		_ = a.cache.SetRowSlides(ctx, rowID, cached)
	}

	return slides, true
}

func (a *API) invalidateRow(r *http.Request, rowID string) {
	if a.cache != nil {
		_ = a.cache.InvalidateRow(r.Context(), rowID)
	}
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	return strings.Trim(slug, "-")
}
