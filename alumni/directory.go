// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package alumni

import (
	"slices"
	"strings"
	"sync"

	"github.com/beccons/alumap/spatial"
	"github.com/google/uuid"
)

// Directory is the single live collection of records.
//
// Writers are the store loads (Replace), the profile form (Append) and the
// backfill (MergeCoordinates). Every mutation happens under the lock, so
// readers never observe a partially applied change.
type Directory struct {
	mu      sync.RWMutex
	records []Record
	version uint64
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Replace swaps the whole collection with a fresh load of the store.
//
// The store never receives backfilled coordinates, so a record the directory
// already holds keeps its id and its coordinates when the incoming copy has
// none. Records are matched on timestamp, names and city, first come first
// matched. An incoming record whose id is already carried by a matched one
// gets a new id.
func (d *Directory) Replace(records []Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	known := make(map[string][]int, len(d.records))
	for i := range d.records {
		k := entryKey(&d.records[i])
		known[k] = append(known[k], i)
	}

	next := cloneRecords(records)
	matched := make([]bool, len(next))
	carried := make(map[string]bool)

	for i := range next {
		k := entryKey(&next[i])

		idx := known[k]
		if len(idx) == 0 {
			continue
		}

		known[k] = idx[1:]
		prev := &d.records[idx[0]]

		next[i].ID = prev.ID
		if next[i].Coordinates == nil && prev.Coordinates != nil {
			p := *prev.Coordinates
			next[i].Coordinates = &p
		}

		matched[i] = true
		carried[prev.ID] = true
	}

	for i := range next {
		if !matched[i] && carried[next[i].ID] {
			next[i].ID = uuid.NewString()
		}
	}

	d.records = next
	d.version++
}

// Append adds one record at the end of the collection.
func (d *Directory) Append(record Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.records = append(d.records, cloneRecord(record))
	d.version++
}

// MergeCoordinates sets the coordinates of the records with the given id that
// have none, leaving their other fields and every other record untouched. A
// record that is already located is never moved. It returns whether a record
// was updated.
func (d *Directory) MergeCoordinates(id string, p spatial.Point) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	updated := false

	for i := range d.records {
		if d.records[i].ID == id && d.records[i].Coordinates == nil {
			point := p
			d.records[i].Coordinates = &point
			updated = true
		}
	}

	if updated {
		d.version++
	}

	return updated
}

// Snapshot returns a copy of the records safe to use without the lock.
func (d *Directory) Snapshot() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return cloneRecords(d.records)
}

// Find returns a copy of the record with the given id.
func (d *Directory) Find(id string) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx := slices.IndexFunc(d.records, func(r Record) bool { return r.ID == id })
	if idx < 0 {
		return Record{}, false
	}

	return cloneRecord(d.records[idx]), true
}

// Counts returns the number of displayable records and the total.
func (d *Directory) Counts() (visible, total int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return CountDisplayable(d.records), len(d.records)
}

// Version increments on every mutation, clients compare it to know when to
// fetch the markers again.
func (d *Directory) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.version
}

func entryKey(r *Record) string {
	return strings.Join([]string{r.Timestamp, r.FirstName, r.LastName, r.City}, "\x00")
}

func cloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}

	out := make([]Record, len(records))
	for i := range records {
		out[i] = cloneRecord(records[i])
	}

	return out
}

func cloneRecord(r Record) Record {
	if r.Coordinates != nil {
		p := *r.Coordinates
		r.Coordinates = &p
	}

	return r
}
