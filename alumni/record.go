// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package alumni holds the alumni records, the live in-memory directory shared by
// the loader, the profile form and the backfill, and the map views built on it.
package alumni

import (
	"strings"

	"github.com/beccons/alumap/spatial"
)

// Record is one alumni entry.
//
// Coordinates is nil until the city has been geocoded. Once set it always
// carries the privacy jitter, raw geocoder output is never stored.
type Record struct {
	ID          string         `json:"id"`
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	City        string         `json:"city"`
	Coordinates *spatial.Point `json:"coordinates,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

// Displayable reports whether the record can be placed on the map.
func (r *Record) Displayable() bool {
	return r.Coordinates != nil
}

// NeedsBackfill reports whether the record lacks coordinates but has a city
// that can be geocoded.
func (r *Record) NeedsBackfill() bool {
	return r.Coordinates == nil && strings.TrimSpace(r.City) != ""
}

// Initials returns the first letter of the first and last names.
func (r *Record) Initials() string {
	return firstRune(r.FirstName) + firstRune(r.LastName)
}

// DisplayName is the name shown publicly: first name and last name initial.
func (r *Record) DisplayName() string {
	if initial := firstRune(r.LastName); initial != "" {
		return r.FirstName + " " + initial + "."
	}

	return r.FirstName
}

func firstRune(s string) string {
	for _, r := range strings.TrimSpace(s) {
		return string(r)
	}

	return ""
}

// MissingCoordinates returns the records eligible for backfill, in order.
func MissingCoordinates(records []Record) []Record {
	var missing []Record

	for i := range records {
		if records[i].NeedsBackfill() {
			missing = append(missing, records[i])
		}
	}

	return missing
}

// CountDisplayable returns how many records have coordinates.
func CountDisplayable(records []Record) int {
	n := 0

	for i := range records {
		if records[i].Displayable() {
			n++
		}
	}

	return n
}
