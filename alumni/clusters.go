// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package alumni

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/beccons/alumap/spatial"
)

// DefaultClusterResolution groups alumni roughly by metropolitan area.
const DefaultClusterResolution = 3

// Cluster groups the displayable records that fall in the same H3 cell.
type Cluster struct {
	Cell    string        `json:"cell"`
	Center  spatial.Point `json:"center"`
	Count   int           `json:"count"`
	Radius  float64       `json:"radius_m"`
	Members []string      `json:"members"`
}

// Clusters groups displayable records by H3 cell at the given resolution,
// largest clusters first.
func Clusters(records []Record, res int) ([]*Cluster, error) {
	if res < 0 || res > spatial.MaxH3Resolution {
		return nil, fmt.Errorf("cluster resolution must be between 0 and %d, got %d", spatial.MaxH3Resolution, res)
	}

	byCell := make(map[string]*Cluster)

	points := make(map[string][]spatial.Point)

	for i := range records {
		r := &records[i]
		if !r.Displayable() {
			continue
		}

		cell, err := spatial.Cell(*r.Coordinates, res)
		if err != nil {
			return nil, fmt.Errorf("clustering %s: %w", r.ID, err)
		}

		key := cell.String()

		c, ok := byCell[key]
		if !ok {
			center, err := spatial.CellCenter(cell)
			if err != nil {
				return nil, err
			}

			c = &Cluster{Cell: key, Center: center}
			byCell[key] = c
		}

		c.Count++
		c.Members = append(c.Members, r.ID)
		points[key] = append(points[key], *r.Coordinates)
	}

	clusters := make([]*Cluster, 0, len(byCell))

	for key, c := range byCell {
		for _, p := range points[key] {
			if d := c.Center.HaversineDistance(&p); d > c.Radius {
				c.Radius = d
			}
		}

		clusters = append(clusters, c)
	}

	slices.SortFunc(clusters, func(a, b *Cluster) int {
		if n := cmp.Compare(b.Count, a.Count); n != 0 {
			return n
		}

		return cmp.Compare(a.Cell, b.Cell)
	})

	return clusters, nil
}
