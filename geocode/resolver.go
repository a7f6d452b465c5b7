// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/beccons/alumap/spatial"
	"golang.org/x/sync/singleflight"
)

// Resolver resolves place names through a Geocoder, remembering every
// successful answer in a Cache.
//
// Resolver does not pace requests. Cache hits cost nothing, so pacing is left
// to callers that know how many real lookups they are about to make.
type Resolver struct {
	geocoder Geocoder
	cache    *Cache
	group    singleflight.Group

	hits     atomic.Int64
	lookups  atomic.Int64
	failures [ErrorTypeNetworkError + 1]atomic.Int64
}

// ResolverStats counts what the resolver did since it was created.
type ResolverStats struct {
	Hits     int64 `json:"hits"`
	Lookups  int64 `json:"lookups"`
	Failures int64 `json:"failures"`
	// FailuresByType splits Failures by ErrorType name, zero counts omitted.
	FailuresByType map[string]int64 `json:"failuresByType,omitempty"`
	Cached         int              `json:"cached"`
}

// NewResolver creates a resolver. A nil cache gets a private one.
func NewResolver(geocoder Geocoder, cache *Cache) *Resolver {
	if cache == nil {
		cache = NewCache()
	}

	return &Resolver{geocoder: geocoder, cache: cache}
}

// Resolve returns the coordinates of place, or false when they can't be found.
//
// Failures are expected (unknown places, throttling, network errors): they are
// logged and reported as a miss, never as an error. Concurrent lookups of the
// same normalized place share a single request.
func (r *Resolver) Resolve(ctx context.Context, place string) (*spatial.Point, bool) {
	key := NormalizeKey(place)
	if key == "" {
		return nil, false
	}

	if p, ok := r.cache.Get(key); ok {
		r.hits.Add(1)

		return &p, true
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		// another caller may have filled it while we waited for the group
		if p, ok := r.cache.Get(key); ok {
			return p, nil
		}

		r.lookups.Add(1)

		result, err := r.geocoder.Geocode(ctx, place)
		if err != nil {
			return nil, err
		}

		p := spatial.Point{Lat: result.Latitude, Lng: result.Longitude}
		if err := p.Validate(); err != nil {
			return nil, err
		}

		r.cache.Put(key, p)

		return p, nil
	})
	if err != nil {
		errType := ErrorTypeOf(err)
		r.failures[errType].Add(1)

		switch errType {
		case ErrorTypeNotFound:
			log.Printf("📭 No match for %q", place)
		case ErrorTypeRateLimit, ErrorTypeQuotaExceeded:
			log.Printf("🐢 Geocoder refused %q (%s): %v", place, errType, err)
		default:
			log.Printf("⚠️  Geocoding error for %q (%s): %v", place, errType, err)
		}

		return nil, false
	}

	p := v.(spatial.Point)

	return &p, true
}

// Stats returns the resolver counters.
func (r *Resolver) Stats() ResolverStats {
	stats := ResolverStats{
		Hits:    r.hits.Load(),
		Lookups: r.lookups.Load(),
		Cached:  r.cache.Len(),
	}

	for t := range r.failures {
		n := r.failures[t].Load()
		if n == 0 {
			continue
		}

		if stats.FailuresByType == nil {
			stats.FailuresByType = make(map[string]int64)
		}

		stats.FailuresByType[ErrorType(t).String()] = n
		stats.Failures += n
	}

	return stats
}
