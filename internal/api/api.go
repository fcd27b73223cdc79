/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP control surface: content management, playlist
// control, and the event feed consumed by display clients.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/quietloom/slidecast/internal/auth"
	"github.com/quietloom/slidecast/internal/cache"
	"github.com/quietloom/slidecast/internal/models"
	"github.com/quietloom/slidecast/internal/playlist"
	"github.com/quietloom/slidecast/internal/signal"
	"github.com/quietloom/slidecast/internal/telemetry"
	"github.com/quietloom/slidecast/internal/visibility"
	ws "nhooyr.io/websocket"
)

// API exposes HTTP handlers.
type API struct {
	db          *gorm.DB
	jwtSecret   []byte
	bus         *signal.Bus
	coordinator *playlist.Coordinator
	filter      *visibility.Filter
	cache       *cache.Cache // nil when caching is disabled
	feed        *eventFeed
	logger      zerolog.Logger

	mu        sync.Mutex
	carousels map[string]*rowCarousel
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, bus *signal.Bus, coordinator *playlist.Coordinator, filter *visibility.Filter, cacheLayer *cache.Cache, logger zerolog.Logger) *API {
	a := &API{
		db:          db,
		jwtSecret:   jwtSecret,
		bus:         bus,
		coordinator: coordinator,
		filter:      filter,
		cache:       cacheLayer,
		feed:        newEventFeed(bus, logger),
		logger:      logger,
		carousels:   make(map[string]*rowCarousel),
	}
	return a
}

// Close detaches the event feed from the signal bus.
func (a *API) Close() {
	a.feed.close()
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public endpoints (no auth required)
		r.Post("/auth/login", a.handleLogin)
		r.Get("/public/rows/{slug}/slides", a.handlePublicRowSlides)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/rows", func(r chi.Router) {
				r.Get("/", a.handleRowsList)
				r.With(a.requireEditor()).Post("/", a.handleRowsCreate)
				r.Route("/{rowID}", func(r chi.Router) {
					r.Get("/", a.handleRowsGet)
					r.With(a.requireEditor()).Patch("/", a.handleRowsUpdate)
					r.With(a.requireAdmin()).Delete("/", a.handleRowsDelete)
					r.Get("/slides", a.handleRowSlidesList)
					r.Get("/slides/visible", a.handleRowSlidesVisible)
					r.With(a.requireEditor()).Post("/slides", a.handleSlidesCreate)
					r.Post("/carousel", a.handleCarouselReport)
				})
			})

			pr.Route("/slides/{slideID}", func(r chi.Router) {
				r.Get("/", a.handleSlidesGet)
				r.With(a.requireEditor()).Patch("/", a.handleSlidesUpdate)
				r.With(a.requireEditor()).Delete("/", a.handleSlidesDelete)
				r.With(a.requireEditor()).Post("/unpublish", a.handleSlidesTempUnpublish)
			})

			pr.Route("/ambient", func(r chi.Router) {
				r.Get("/", a.handleAmbientList)
				r.With(a.requireEditor()).Post("/", a.handleAmbientCreate)
				r.With(a.requireEditor()).Patch("/{trackID}", a.handleAmbientUpdate)
				r.With(a.requireEditor()).Delete("/{trackID}", a.handleAmbientDelete)
			})

			pr.Route("/playlist", func(r chi.Router) {
				r.Post("/rows/{rowID}/start", a.handlePlaylistStart)
				r.Post("/pause", a.handlePlaylistPause)
				r.Post("/resume", a.handlePlaylistResume)
				r.Post("/stop", a.handlePlaylistStop)
				r.Get("/status", a.handlePlaylistStatus)
				r.Post("/ended", a.handlePlaylistEnded)
			})

			pr.With(a.requireEditor()).Get("/history", a.handleHistoryList)

			pr.Route("/users", func(r chi.Router) {
				r.Get("/me", a.handleUsersMe)
				r.Route("/me/api-keys", func(r chi.Router) {
					r.Get("/", a.handleAPIKeysList)
					r.Post("/", a.handleAPIKeysCreate)
					r.Delete("/{keyID}", a.handleAPIKeysRevoke)
				})
				r.With(a.requireAdmin()).Get("/", a.handleUsersList)
				r.With(a.requireAdmin()).Post("/", a.handleUsersCreate)
			})

			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents streams playback signals, completions, and carousel moves to
// display clients over a websocket.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	events, unsubscribe := a.feed.subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Error().Err(err).Msg("websocket ping failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		case data, ok := <-events:
			if !ok {
				conn.Close(ws.StatusNormalClosure, "feed closed")
				return
			}
			if err := conn.Write(ctx, ws.MessageText, data); err != nil {
				a.logger.Error().Err(err).Msg("websocket write failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.db, a.jwtSecret)
}

func (a *API) requireEditor() func(http.Handler) http.Handler {
	return auth.RequireRole(models.RoleEditor)
}

func (a *API) requireAdmin() func(http.Handler) http.Handler {
	return auth.RequireRole(models.RoleAdmin)
}

// carouselFor returns the server-side carousel mirror for a row, creating it
// on first use. Coordinator-driven moves are broadcast on the event feed so
// display clients follow along.
func (a *API) carouselFor(rowID string) *rowCarousel {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.carousels[rowID]
	if !ok {
		c = &rowCarousel{
			rowID: rowID,
			mem:   playlist.NewMemoryCarousel(),
			feed:  a.feed,
		}
		a.carousels[rowID] = c
	}
	return c
}

// rowCarousel mirrors a display client's pager position. MoveTo is invoked by
// the playlist coordinator; reported positions from the client bypass the feed
// broadcast to avoid an echo.
type rowCarousel struct {
	rowID string
	mem   *playlist.MemoryCarousel
	feed  *eventFeed
}

func (c *rowCarousel) CurrentIndex() int {
	return c.mem.CurrentIndex()
}

func (c *rowCarousel) MoveTo(index int) {
	c.mem.MoveTo(index)
	c.feed.broadcast("carousel_moved", map[string]any{
		"row_id": c.rowID,
		"index":  c.mem.CurrentIndex(),
	})
}

func (c *rowCarousel) report(index int) {
	c.mem.MoveTo(index)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
