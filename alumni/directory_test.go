// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package alumni

import (
	"sync"
	"testing"

	"github.com/beccons/alumap/spatial"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(lat, lng float64) *spatial.Point {
	return &spatial.Point{Lat: lat, Lng: lng}
}

func TestRecordPredicates(t *testing.T) {
	tests := []struct {
		name          string
		record        Record
		displayable   bool
		needsBackfill bool
	}{
		{
			name:          "located",
			record:        Record{FirstName: "Ana", City: "Rome", Coordinates: point(41.9, 12.5)},
			displayable:   true,
			needsBackfill: false,
		},
		{
			name:          "missing coordinates",
			record:        Record{FirstName: "Ana", City: "Rome"},
			displayable:   false,
			needsBackfill: true,
		},
		{
			name:          "blank city",
			record:        Record{FirstName: "Ana", City: "   "},
			displayable:   false,
			needsBackfill: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.displayable, tt.record.Displayable())
			assert.Equal(t, tt.needsBackfill, tt.record.NeedsBackfill())
		})
	}
}

func TestDisplayNameAndInitials(t *testing.T) {
	r := Record{FirstName: "Élodie", LastName: "Rossi"}
	assert.Equal(t, "Élodie R.", r.DisplayName())
	assert.Equal(t, "ÉR", r.Initials())

	r = Record{FirstName: "Marco"}
	assert.Equal(t, "Marco", r.DisplayName())
	assert.Equal(t, "M", r.Initials())
}

func TestMissingCoordinates(t *testing.T) {
	records := []Record{
		{ID: "1", City: "Rome", Coordinates: point(1, 1)},
		{ID: "2", City: "Paris"},
		{ID: "3", City: ""},
		{ID: "4", City: "Milan"},
	}

	missing := MissingCoordinates(records)
	require.Len(t, missing, 2)
	assert.Equal(t, "2", missing[0].ID)
	assert.Equal(t, "4", missing[1].ID)
	assert.Equal(t, 1, CountDisplayable(records))
}

func TestDirectoryMergeCoordinatesByID(t *testing.T) {
	d := NewDirectory()
	d.Replace([]Record{
		{ID: "a", FirstName: "Ana", LastName: "B", City: "Rome", Timestamp: "t1"},
		{ID: "b", FirstName: "Bea", LastName: "C", City: "Paris"},
	})

	require.True(t, d.MergeCoordinates("a", spatial.Point{Lat: 41.9, Lng: 12.5}))

	want := []Record{
		{ID: "a", FirstName: "Ana", LastName: "B", City: "Rome", Timestamp: "t1", Coordinates: point(41.9, 12.5)},
		{ID: "b", FirstName: "Bea", LastName: "C", City: "Paris"},
	}
	if diff := cmp.Diff(want, d.Snapshot()); diff != "" {
		t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, d.MergeCoordinates("missing", spatial.Point{}))
}

func TestDirectoryMergeNeverMovesLocatedRecord(t *testing.T) {
	paris := point(48.8566, 2.3522)

	d := NewDirectory()
	d.Replace([]Record{
		{ID: "2024-05-01", FirstName: "Anna", City: "Paris", Coordinates: paris},
		{ID: "2024-05-01", FirstName: "Bea", City: "Rome"},
	})

	require.True(t, d.MergeCoordinates("2024-05-01", spatial.Point{Lat: 41.9, Lng: 12.5}))

	snap := d.Snapshot()
	assert.Equal(t, paris, snap[0].Coordinates, "a located record keeps its position")
	assert.Equal(t, point(41.9, 12.5), snap[1].Coordinates)

	assert.False(t, d.MergeCoordinates("2024-05-01", spatial.Point{Lat: 0, Lng: 0}), "nothing left to locate")
}

func TestDirectoryReplaceKeepsKnownCoordinates(t *testing.T) {
	d := NewDirectory()
	d.Replace([]Record{
		{ID: "t1", FirstName: "Ana", LastName: "B", City: "Rome", Timestamp: "t1"},
		{ID: "random-1", FirstName: "Bea", City: "Paris"},
		{ID: "t3", FirstName: "Cleo", City: "Lyon", Timestamp: "t3"},
	})
	require.True(t, d.MergeCoordinates("t1", spatial.Point{Lat: 41.9, Lng: 12.5}))
	require.True(t, d.MergeCoordinates("random-1", spatial.Point{Lat: 48.8, Lng: 2.3}))

	// a fresh load: the store has no backfilled coordinates and rows without
	// a timestamp come back with new ids
	d.Replace([]Record{
		{ID: "t1", FirstName: "Ana", LastName: "B", City: "Rome", Timestamp: "t1"},
		{ID: "random-2", FirstName: "Bea", City: "Paris"},
		{ID: "t3", FirstName: "Cleo", City: "Lyon", Timestamp: "t3", Coordinates: point(45.7, 4.8)},
		{ID: "t4", FirstName: "Dan", City: "Nice", Timestamp: "t4"},
	})

	want := []Record{
		{ID: "t1", FirstName: "Ana", LastName: "B", City: "Rome", Timestamp: "t1", Coordinates: point(41.9, 12.5)},
		{ID: "random-1", FirstName: "Bea", City: "Paris", Coordinates: point(48.8, 2.3)},
		{ID: "t3", FirstName: "Cleo", City: "Lyon", Timestamp: "t3", Coordinates: point(45.7, 4.8)},
		{ID: "t4", FirstName: "Dan", City: "Nice", Timestamp: "t4"},
	}
	if diff := cmp.Diff(want, d.Snapshot()); diff != "" {
		t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
	}

	// merges of a pass started before the reload still land
	assert.True(t, d.MergeCoordinates("t4", spatial.Point{Lat: 43.7, Lng: 7.26}))
}

func TestDirectoryReplaceResolvesCarriedIDCollision(t *testing.T) {
	d := NewDirectory()
	d.Replace([]Record{{ID: "t#2", FirstName: "Ana", City: "Rome", Timestamp: "t"}})

	d.Replace([]Record{
		{ID: "t#2", FirstName: "Zoe", City: "Lyon", Timestamp: "t"},
		{ID: "t#3", FirstName: "Ana", City: "Rome", Timestamp: "t"},
	})

	snap := d.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "t#2", snap[1].ID, "the known record keeps its id")
	assert.NotEqual(t, "t#2", snap[0].ID)
	assert.NotEmpty(t, snap[0].ID)
}

func TestDirectoryPreservesAppendAcrossMerge(t *testing.T) {
	d := NewDirectory()
	d.Replace([]Record{{ID: "a", FirstName: "Ana", City: "Rome"}})

	d.Append(Record{ID: "new", FirstName: "Zoe", City: "Lyon", Coordinates: point(45.7, 4.8)})
	d.MergeCoordinates("a", spatial.Point{Lat: 41.9, Lng: 12.5})

	visible, total := d.Counts()
	assert.Equal(t, 2, visible)
	assert.Equal(t, 2, total)

	r, ok := d.Find("new")
	require.True(t, ok)
	assert.Equal(t, "Zoe", r.FirstName)
}

func TestDirectorySnapshotIsACopy(t *testing.T) {
	d := NewDirectory()
	d.Replace([]Record{{ID: "a", City: "Rome", Coordinates: point(1, 2)}})

	snap := d.Snapshot()
	snap[0].City = "changed"
	snap[0].Coordinates.Lat = 99

	r, ok := d.Find("a")
	require.True(t, ok)
	assert.Equal(t, "Rome", r.City)
	assert.InDelta(t, 1.0, r.Coordinates.Lat, 1e-9)
}

func TestDirectoryVersion(t *testing.T) {
	d := NewDirectory()
	v0 := d.Version()

	d.Replace([]Record{{ID: "a", City: "Rome"}})
	d.Append(Record{ID: "b", City: "Milan"})
	d.MergeCoordinates("zzz", spatial.Point{})

	assert.Equal(t, v0+2, d.Version())
}

func TestDirectoryConcurrentWriters(t *testing.T) {
	d := NewDirectory()

	records := make([]Record, 100)
	for i := range records {
		records[i] = Record{ID: string(rune('A' + i%26)) + string(rune('0'+i/26)), City: "Rome"}
	}

	d.Replace(records)

	var wg sync.WaitGroup

	for _, r := range records {
		wg.Add(1)

		go func(id string) {
			defer wg.Done()
			d.MergeCoordinates(id, spatial.Point{Lat: 1, Lng: 1})
		}(r.ID)
	}

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			d.Append(Record{ID: "extra", City: "Paris"})
		}()
	}

	wg.Wait()

	visible, total := d.Counts()
	assert.Equal(t, 100, visible)
	assert.Equal(t, 110, total)
}
