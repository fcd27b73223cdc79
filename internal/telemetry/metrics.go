/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint, and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slidecast_api_requests_total",
		Help: "Total HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slidecast_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slidecast_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	// APIWebSocketConnections gauges open event-feed websockets.
	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slidecast_api_websocket_connections",
		Help: "Open event feed websocket connections.",
	})

	// PlaylistSessionsStarted counts playlist sessions started.
	PlaylistSessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_playlist_sessions_started_total",
		Help: "Playlist sessions started.",
	})

	// PlaylistSessionsActive gauges the active playlist session (0 or 1).
	PlaylistSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slidecast_playlist_sessions_active",
		Help: "Whether a playlist session is currently active.",
	})

	// PlaylistTracksStarted counts tracks the coordinator activated.
	PlaylistTracksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slidecast_playlist_tracks_started_total",
		Help: "Tracks started by the playlist coordinator.",
	})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
