/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for the read-heavy
// display endpoints. The cache degrades to a no-op when Redis is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultRowListTTL     = 5 * time.Minute
	DefaultRowSlidesTTL   = 5 * time.Minute
	DefaultAmbientListTTL = 30 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyRowList     = "slidecast:cache:rows"
	KeyRowSlides   = "slidecast:cache:row_slides:" // + row_id
	KeyAmbientList = "slidecast:cache:ambient"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	RowListTTL     time.Duration
	RowSlidesTTL   time.Duration
	AmbientListTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		RowListTTL:     DefaultRowListTTL,
		RowSlidesTTL:   DefaultRowSlidesTTL,
		AmbientListTTL: DefaultAmbientListTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. A failed connection downgrades the cache
// to a disabled pass-through rather than failing startup.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// SCAN rather than KEYS so a large keyspace never blocks Redis.
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Row caching

// CachedRow represents a cached row record.
type CachedRow struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Slug                 string `json:"slug"`
	Description          string `json:"description"`
	PlaylistDelaySeconds int    `json:"playlist_delay_seconds"`
	Position             int    `json:"position"`
	SlideCount           int    `json:"slide_count"`
}

// GetRowList retrieves the cached list of rows.
func (c *Cache) GetRowList(ctx context.Context) ([]CachedRow, bool) {
	var rows []CachedRow
	found, err := c.get(ctx, KeyRowList, &rows)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(rows)).Msg("row list cache hit")
	return rows, true
}

// SetRowList caches the list of rows.
func (c *Cache) SetRowList(ctx context.Context, rows []CachedRow) error {
	c.logger.Debug().Int("count", len(rows)).Msg("caching row list")
	return c.set(ctx, KeyRowList, rows, c.config.RowListTTL)
}

// InvalidateRowList removes the row list from cache.
func (c *Cache) InvalidateRowList(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating row list cache")
	return c.delete(ctx, KeyRowList)
}

// Slide caching

// CachedSlide carries a slide with its raw scheduling fields so display
// clients can re-evaluate visibility without another round trip.
type CachedSlide struct {
	ID                 string     `json:"id"`
	RowID              string     `json:"row_id"`
	Position           int        `json:"position"`
	Title              string     `json:"title"`
	Body               string     `json:"body"`
	ImageURL           string     `json:"image_url"`
	AudioURL           string     `json:"audio_url"`
	IsPublished        bool       `json:"is_published"`
	PublishTimeStart   string     `json:"publish_time_start"`
	PublishTimeEnd     string     `json:"publish_time_end"`
	PublishDays        string     `json:"publish_days"`
	TempUnpublishUntil *time.Time `json:"temp_unpublish_until,omitempty"`
}

// GetRowSlides retrieves the cached slide list for a row.
func (c *Cache) GetRowSlides(ctx context.Context, rowID string) ([]CachedSlide, bool) {
	var slides []CachedSlide
	found, err := c.get(ctx, KeyRowSlides+rowID, &slides)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("row_id", rowID).Int("count", len(slides)).Msg("row slides cache hit")
	return slides, true
}

// SetRowSlides caches the slide list for a row.
func (c *Cache) SetRowSlides(ctx context.Context, rowID string, slides []CachedSlide) error {
	c.logger.Debug().Str("row_id", rowID).Int("count", len(slides)).Msg("caching row slides")
	return c.set(ctx, KeyRowSlides+rowID, slides, c.config.RowSlidesTTL)
}

// InvalidateRowSlides removes the slide list cache for a row.
func (c *Cache) InvalidateRowSlides(ctx context.Context, rowID string) error {
	c.logger.Debug().Str("row_id", rowID).Msg("invalidating row slides cache")
	return c.delete(ctx, KeyRowSlides+rowID)
}

// Ambient track caching

// CachedAmbientTrack represents a cached ambient track record.
type CachedAmbientTrack struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	AudioURL string `json:"audio_url"`
	Position int    `json:"position"`
}

// GetAmbientList retrieves the cached list of enabled ambient tracks.
func (c *Cache) GetAmbientList(ctx context.Context) ([]CachedAmbientTrack, bool) {
	var tracks []CachedAmbientTrack
	found, err := c.get(ctx, KeyAmbientList, &tracks)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(tracks)).Msg("ambient list cache hit")
	return tracks, true
}

// SetAmbientList caches the list of enabled ambient tracks.
func (c *Cache) SetAmbientList(ctx context.Context, tracks []CachedAmbientTrack) error {
	c.logger.Debug().Int("count", len(tracks)).Msg("caching ambient list")
	return c.set(ctx, KeyAmbientList, tracks, c.config.AmbientListTTL)
}

// InvalidateAmbientList removes the ambient track list from cache.
func (c *Cache) InvalidateAmbientList(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating ambient list cache")
	return c.delete(ctx, KeyAmbientList)
}

// InvalidateRow removes all caches related to a row, including the row list
// since slide counts are denormalized into it.
func (c *Cache) InvalidateRow(ctx context.Context, rowID string) error {
	c.logger.Debug().Str("row_id", rowID).Msg("invalidating all row caches")

	if err := c.InvalidateRowList(ctx); err != nil {
		return err
	}
	return c.InvalidateRowSlides(ctx, rowID)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "slidecast:cache:*")
}
