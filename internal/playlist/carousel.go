/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import "sync"

// MemoryCarousel is a concurrency-safe position tracker satisfying Carousel.
// The HTTP layer keeps one per row to mirror the viewer's pager.
type MemoryCarousel struct {
	mu    sync.Mutex
	index int
}

// NewMemoryCarousel creates a carousel at position zero.
func NewMemoryCarousel() *MemoryCarousel {
	return &MemoryCarousel{}
}

// CurrentIndex returns the current position.
func (c *MemoryCarousel) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// MoveTo jumps to the given position.
func (c *MemoryCarousel) MoveTo(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 {
		index = 0
	}
	c.index = index
}
