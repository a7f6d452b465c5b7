// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package alumni

import (
	"strings"

	"github.com/beccons/alumap/spatial"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultPalette is the marker palette of the map.
var DefaultPalette = []string{"#003399", "#CC0000", "#059669", "#D97706", "#7C3AED"}

// Marker describes one pin handed to the map widget.
type Marker struct {
	ID       string        `json:"id"`
	Position spatial.Point `json:"position"`
	Label    string        `json:"label"`
	Initials string        `json:"initials"`
	Color    string        `json:"color"`
	Popup    string        `json:"popup"`
}

// MapView is everything the map widget needs to render: the markers and the
// box to fit them in. Bounds is nil when there is nothing to show, in which
// case the widget keeps its default center.
type MapView struct {
	Center  spatial.Point   `json:"center"`
	Markers []Marker        `json:"markers"`
	Bounds  *spatial.Bounds `json:"bounds"`
}

// Markers builds a marker for every displayable record.
//
// Colors cycle through the palette by the record's index in the full list,
// so they may change when the list is reordered.
func Markers(records []Record, palette []string) []Marker {
	markers := make([]Marker, 0, len(records))

	for i := range records {
		r := &records[i]
		if !r.Displayable() {
			continue
		}

		color := ""
		if len(palette) > 0 {
			color = palette[i%len(palette)]
		}

		markers = append(markers, Marker{
			ID:       r.ID,
			Position: *r.Coordinates,
			Label:    r.DisplayName(),
			Initials: r.Initials(),
			Color:    color,
			Popup:    popupHTML(r),
		})
	}

	return markers
}

// NewMapView builds the markers for records and the bounds to fit them.
func NewMapView(records []Record, palette []string, center spatial.Point) *MapView {
	markers := Markers(records, palette)

	points := make([]spatial.Point, 0, len(markers))
	for _, m := range markers {
		points = append(points, m.Position)
	}

	return &MapView{
		Center:  center,
		Markers: markers,
		Bounds:  spatial.BoundsOf(points),
	}
}

// popupHTML renders the popup fragment. Names and cities are user input, so
// the fragment is built as a node tree and every text is escaped on render.
func popupHTML(r *Record) string {
	root := element(atom.Div, "popup")

	name := element(atom.P, "popup-name")
	name.AppendChild(&html.Node{Type: html.TextNode, Data: r.DisplayName()})
	root.AppendChild(name)

	city := element(atom.Div, "popup-city")
	city.AppendChild(&html.Node{Type: html.TextNode, Data: "📍 " + r.City})
	root.AppendChild(city)

	var sb strings.Builder
	if err := html.Render(&sb, root); err != nil {
		return ""
	}

	return sb.String()
}

func element(a atom.Atom, class string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     []html.Attribute{{Key: "class", Val: class}},
	}
}
