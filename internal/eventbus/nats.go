/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors local playback signal traffic across instances via
// NATS so multiple slidecast nodes stay in sync about what is playing.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/quietloom/slidecast/internal/signal"
)

// NATS subjects for mirrored signal traffic.
const (
	SubjectPlayback = "slidecast.signal.playback"
	SubjectEnded    = "slidecast.signal.ended"
)

// Config contains NATS connection configuration. NodeID identifies this
// instance for echo suppression; when empty a hostname-derived id is
// generated.
type Config struct {
	URL           string
	NodeID        string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns default NATS configuration.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Bridge connects a local signal bus to NATS. Local playback and completion
// signals are mirrored to NATS subjects, and signals from other nodes are
// injected into the local bus. Echoes are suppressed by node id.
type Bridge struct {
	conn   *nats.Conn
	bus    *signal.Bus
	logger zerolog.Logger
	nodeID string

	// Counts in-flight remote injections so the local mirror subscribers do
	// not re-publish them back to NATS.
	injecting atomic.Int32

	unsubPlayback func()
	unsubEnded    func()
	subs          []*nats.Subscription
}

type wirePlayback struct {
	SlideID   string    `json:"slide_id,omitempty"`
	RowID     string    `json:"row_id,omitempty"`
	Action    string    `json:"action"`
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

type wireEnded struct {
	SlideID   string    `json:"slide_id"`
	RowID     string    `json:"row_id"`
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBridge connects to NATS and mounts the bridge on the local bus.
func NewBridge(cfg Config, bus *signal.Bus, logger zerolog.Logger) (*Bridge, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.Name("slidecast"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = generateNodeID()
	}

	b := &Bridge{
		conn:   conn,
		bus:    bus,
		logger: logger.With().Str("component", "eventbus").Logger(),
		nodeID: nodeID,
	}

	b.unsubPlayback = bus.SubscribePlayback(b.mirrorPlayback)
	b.unsubEnded = bus.SubscribeEnded(b.mirrorEnded)

	subPlayback, err := conn.Subscribe(SubjectPlayback, b.receivePlayback)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("subscribe %s: %w", SubjectPlayback, err)
	}
	b.subs = append(b.subs, subPlayback)

	subEnded, err := conn.Subscribe(SubjectEnded, b.receiveEnded)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("subscribe %s: %w", SubjectEnded, err)
	}
	b.subs = append(b.subs, subEnded)

	b.logger.Info().Str("url", cfg.URL).Str("node_id", b.nodeID).Msg("NATS signal bridge connected")

	return b, nil
}

// Close unmounts the bridge and drains the NATS connection.
func (b *Bridge) Close() error {
	if b.unsubPlayback != nil {
		b.unsubPlayback()
	}
	if b.unsubEnded != nil {
		b.unsubEnded()
	}
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	if b.conn != nil {
		if err := b.conn.Drain(); err != nil {
			b.conn.Close()
			return err
		}
	}
	return nil
}

func (b *Bridge) mirrorPlayback(ev signal.Playback) {
	if b.injecting.Load() > 0 {
		return
	}

	data, err := json.Marshal(wirePlayback{
		SlideID:   ev.SlideID,
		RowID:     ev.RowID,
		Action:    string(ev.Action),
		NodeID:    b.nodeID,
		Timestamp: time.Now(),
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to marshal playback signal")
		return
	}

	if err := b.conn.Publish(SubjectPlayback, data); err != nil {
		b.logger.Error().Err(err).Msg("failed to publish playback signal to NATS")
	}
}

func (b *Bridge) mirrorEnded(ev signal.TrackEnded) {
	if b.injecting.Load() > 0 {
		return
	}

	data, err := json.Marshal(wireEnded{
		SlideID:   ev.SlideID,
		RowID:     ev.RowID,
		NodeID:    b.nodeID,
		Timestamp: time.Now(),
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to marshal completion signal")
		return
	}

	if err := b.conn.Publish(SubjectEnded, data); err != nil {
		b.logger.Error().Err(err).Msg("failed to publish completion signal to NATS")
	}
}

func (b *Bridge) receivePlayback(msg *nats.Msg) {
	var wire wirePlayback
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		b.logger.Error().Err(err).Msg("failed to unmarshal playback signal from NATS")
		return
	}
	if wire.NodeID == b.nodeID {
		return
	}

	b.injecting.Add(1)
	defer b.injecting.Add(-1)

	b.bus.PublishPlayback(signal.Playback{
		SlideID: wire.SlideID,
		RowID:   wire.RowID,
		Action:  signal.Action(wire.Action),
	})
}

func (b *Bridge) receiveEnded(msg *nats.Msg) {
	var wire wireEnded
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		b.logger.Error().Err(err).Msg("failed to unmarshal completion signal from NATS")
		return
	}
	if wire.NodeID == b.nodeID {
		return
	}

	b.injecting.Add(1)
	defer b.injecting.Add(-1)

	b.bus.PublishEnded(signal.TrackEnded{
		SlideID: wire.SlideID,
		RowID:   wire.RowID,
	})
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "node"
	}
	return host + "-" + uuid.NewString()[:8]
}
