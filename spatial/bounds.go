// Copyright 2025 The Alumap Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"github.com/golang/geo/s2"
)

// Bounds is the latitude/longitude box the map view fits itself to.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Center returns the center of the box.
func (b Bounds) Center() Point {
	c := b.rect().Center()

	return Point{Lat: c.Lat.Degrees(), Lng: c.Lng.Degrees()}
}

func (b Bounds) rect() s2.Rect {
	return s2.RectFromLatLng(s2.LatLngFromDegrees(b.South, b.West)).
		AddPoint(s2.LatLngFromDegrees(b.North, b.East))
}

// BoundsOf returns the smallest box containing all points, or nil when there
// are none.
func BoundsOf(points []Point) *Bounds {
	if len(points) == 0 {
		return nil
	}

	rect := s2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}

	lo, hi := rect.Lo(), rect.Hi()

	return &Bounds{
		South: lo.Lat.Degrees(),
		West:  lo.Lng.Degrees(),
		North: hi.Lat.Degrees(),
		East:  hi.Lng.Degrees(),
	}
}
