// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// NominatimProvider is the provider name reported in results.
const NominatimProvider = "nominatim"

// DefaultNominatimURL is the public OpenStreetMap instance. Its usage policy
// allows at most one request per second and requires an identifying
// User-Agent, the caller is in charge of both.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimGeocoder uses the OpenStreetMap Nominatim search API. It needs no
// API key.
type NominatimGeocoder struct {
	baseURL    string
	httpClient *http.Client
}

// NewNominatimGeocoder creates a Nominatim geocoder. An empty baseURL selects
// the public instance.
func NewNominatimGeocoder(baseURL string, httpClient *http.Client) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &NominatimGeocoder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building nominatim request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, transportError(NominatimProvider, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, NominatimProvider)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: "decoding nominatim response",
			Err:     err,
		}
	}

	if len(places) == 0 {
		return nil, notFound(query)
	}

	place := places[0]

	lat, errLat := strconv.ParseFloat(place.Lat, 64)
	lng, errLng := strconv.ParseFloat(place.Lon, 64)

	if errLat != nil || errLng != nil || !finite(lat) || !finite(lng) {
		return nil, &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("nominatim returned invalid coordinates %q, %q", place.Lat, place.Lon),
		}
	}

	// importance ranges from 0 to 1, cities sit well above 0.5
	confidence := "low"

	switch {
	case place.Importance >= 0.6:
		confidence = "high"
	case place.Importance >= 0.3:
		confidence = "medium"
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lng,
		Confidence:  confidence,
		Provider:    NominatimProvider,
		DisplayName: place.DisplayName,
	}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
