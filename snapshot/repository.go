// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot exports the located alumni to a DuckDB file for offline
// analysis. The snapshot is a copy: the spreadsheet stays the system of record.
package snapshot

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/spatial"
	"github.com/uber/h3-go/v4"
)

const (
	minCellResolution = 1
	maxCellResolution = 8
)

// CellCount is the number of alumni in one H3 cell.
type CellCount struct {
	Cell   string        `json:"cell"`
	Center spatial.Point `json:"center"`
	Count  int           `json:"count"`
}

// SnapshotRepository stores the located alumni.
type SnapshotRepository interface {
	// CreateSchema creates the alumni table
	CreateSchema() error

	// SaveRecords replaces the snapshot with the displayable records and
	// returns how many were written
	SaveRecords(records []alumni.Record) (int, error)

	// ListRecords returns the snapshot in its original order
	ListRecords() ([]alumni.Record, error)

	// CountByCell returns the alumni per H3 cell at res (1 to 8), largest first
	CountByCell(res int) ([]CellCount, error)
}

type sqlSnapshotRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSnapshotRepository creates a repository on db.
func NewSnapshotRepository(db *sql.DB) SnapshotRepository {
	return &sqlSnapshotRepository{db: db, now: time.Now}
}

func (r *sqlSnapshotRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS alumni (
			position INTEGER NOT NULL,
			id VARCHAR PRIMARY KEY,
			first_name VARCHAR NOT NULL,
			last_name VARCHAR NOT NULL,
			city VARCHAR NOT NULL,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			recorded_at VARCHAR,
			exported_at TIMESTAMP NOT NULL,
			h3_res1 UBIGINT,
			h3_res2 UBIGINT,
			h3_res3 UBIGINT,
			h3_res4 UBIGINT,
			h3_res5 UBIGINT,
			h3_res6 UBIGINT,
			h3_res7 UBIGINT,
			h3_res8 UBIGINT
		);
	`)
	if err != nil {
		return fmt.Errorf("creating alumni table: %w", err)
	}

	return nil
}

func cells(p spatial.Point) ([]any, error) {
	out := make([]any, 0, maxCellResolution)

	for res := minCellResolution; res <= maxCellResolution; res++ {
		cell, err := spatial.Cell(p, res)
		if err != nil {
			return nil, err
		}

		out = append(out, uint64(cell))
	}

	return out, nil
}

func (r *sqlSnapshotRepository) SaveRecords(records []alumni.Record) (n int, err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.Exec(`DELETE FROM alumni`); err != nil {
		return 0, fmt.Errorf("clearing previous snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO alumni (
			position, id, first_name, last_name, city, lat, lng, recorded_at, exported_at,
			h3_res1, h3_res2, h3_res3, h3_res4, h3_res5, h3_res6, h3_res7, h3_res8
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	exportedAt := r.now().UTC()

	var recordedAt *string

	for i := range records {
		rec := &records[i]
		if !rec.Displayable() {
			continue
		}

		h3Cells, err := cells(*rec.Coordinates)
		if err != nil {
			return 0, fmt.Errorf("computing cells of %s: %w", rec.ID, err)
		}

		recordedAt = nil
		if rec.Timestamp != "" {
			recordedAt = &rec.Timestamp
		}

		args := []any{
			n,
			rec.ID,
			rec.FirstName,
			rec.LastName,
			rec.City,
			rec.Coordinates.Lat,
			rec.Coordinates.Lng,
			recordedAt,
			exportedAt,
		}

		if _, err = stmt.Exec(append(args, h3Cells...)...); err != nil {
			return 0, fmt.Errorf("inserting %s: %w", rec.ID, err)
		}

		n++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing snapshot: %w", err)
	}

	return n, nil
}

func (r *sqlSnapshotRepository) ListRecords() ([]alumni.Record, error) {
	rows, err := r.db.Query(`
		SELECT id, first_name, last_name, city, lat, lng, recorded_at
		FROM alumni
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	defer rows.Close()

	var records []alumni.Record

	for rows.Next() {
		var (
			rec        alumni.Record
			p          spatial.Point
			recordedAt sql.NullString
		)

		if err := rows.Scan(&rec.ID, &rec.FirstName, &rec.LastName, &rec.City, &p.Lat, &p.Lng, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}

		rec.Coordinates = &p
		rec.Timestamp = recordedAt.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *sqlSnapshotRepository) CountByCell(res int) ([]CellCount, error) {
	if res < minCellResolution || res > maxCellResolution {
		return nil, fmt.Errorf("snapshot cells are stored for resolutions %d to %d, got %d",
			minCellResolution, maxCellResolution, res)
	}

	column := fmt.Sprintf("h3_res%d", res)

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %[1]s, count(*) AS n
		FROM alumni
		GROUP BY %[1]s
		ORDER BY n DESC, %[1]s
	`, column))
	if err != nil {
		return nil, fmt.Errorf("counting by %s: %w", column, err)
	}
	defer rows.Close()

	var counts []CellCount

	for rows.Next() {
		var (
			raw   uint64
			count int
		)

		if err := rows.Scan(&raw, &count); err != nil {
			return nil, fmt.Errorf("scanning cell count: %w", err)
		}

		cell := h3.Cell(int64(raw))

		center, err := spatial.CellCenter(cell)
		if err != nil {
			return nil, err
		}

		counts = append(counts, CellCount{Cell: cell.String(), Center: center, Count: count})
	}

	return counts, rows.Err()
}
