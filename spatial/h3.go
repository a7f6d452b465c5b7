// Copyright 2025 The Alumap Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// MaxH3Resolution is the finest resolution supported by H3.
const MaxH3Resolution = 15

// Cell returns the H3 cell containing p at the given resolution.
func Cell(p Point, res int) (h3.Cell, error) {
	if res < 0 || res > MaxH3Resolution {
		return 0, fmt.Errorf("spatial: h3 resolution must be between 0 and %d (got %d)", MaxH3Resolution, res)
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
	if err != nil {
		return 0, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
	}

	return cell, nil
}

// CellCenter returns the center point of an H3 cell.
func CellCenter(cell h3.Cell) (Point, error) {
	latLng, err := h3.CellToLatLng(cell)
	if err != nil {
		return Point{}, fmt.Errorf("error resolving h3 cell %s: %w", cell, err)
	}

	return Point{Lat: latLng.Lat, Lng: latLng.Lng}, nil
}
