// Copyright 2025 The Alumap Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"math/rand/v2"
	"sync"
)

// Jitterer moves points by a random offset so that stored positions never
// disclose the exact geocoded location.
//
// Each axis is displaced independently by a value drawn uniformly from
// [-Radius/2, +Radius/2] degrees.
type Jitterer struct {
	Radius float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJitterer creates a Jitterer backed by a randomly seeded source.
func NewJitterer(radius float64) *Jitterer {
	return NewJittererWithSource(radius, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// NewJittererWithSource creates a Jitterer with a caller supplied source, mostly
// useful for reproducible tests.
func NewJittererWithSource(radius float64, rnd *rand.Rand) *Jitterer {
	return &Jitterer{Radius: radius, rnd: rnd}
}

// Apply returns p displaced by an independent offset on each axis.
func (j *Jitterer) Apply(p Point) Point {
	j.mu.Lock()
	dLat := (j.rnd.Float64() - 0.5) * j.Radius
	dLng := (j.rnd.Float64() - 0.5) * j.Radius
	j.mu.Unlock()

	return Point{
		Lat: p.Lat + dLat,
		Lng: p.Lng + dLng,
	}
}
