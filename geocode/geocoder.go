// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode resolves free-text place names to coordinates.
package geocode

import (
	"context"
)

// Result represents a geocoding result from any provider.
type Result struct {
	Latitude    float64
	Longitude   float64
	Confidence  string // high, medium, low
	Provider    string
	DisplayName string
}

// Geocoder interface for different geocoding providers. It returns the single
// best match for query.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
}
