// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"strings"
	"sync"

	"github.com/beccons/alumap/spatial"
	"golang.org/x/text/cases"
)

// NormalizeKey returns the cache key for a place name: trimmed and case folded,
// so that "Rome", " rome " and "ROME" share an entry.
func NormalizeKey(place string) string {
	return cases.Fold().String(strings.TrimSpace(place))
}

// Cache maps normalized place names to resolved coordinates.
//
// Entries are never evicted, the cache lives as long as the process. A single
// instance is shared by every caller of the resolver.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]spatial.Point
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]spatial.Point)}
}

// Get returns the coordinates cached under the normalized key.
func (c *Cache) Get(key string) (spatial.Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.entries[key]

	return p, ok
}

// Put stores coordinates under the normalized key.
func (c *Cache) Put(key string, p spatial.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = p
}

// Len returns the number of cached places.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
