// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package sheet talks to the spreadsheet-backed record store: a Google Apps
// Script web app that lists every row on GET and appends one row on POST.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/spatial"
	"github.com/google/uuid"
)

// Options configures the store client.
type Options struct {
	// URL is the store endpoint.
	URL string

	// ConfirmWrites treats a non-2xx answer to an append as a failure. The
	// Apps Script endpoint answers appends with a redirect to a page we can't
	// read from a browser, so by default any dispatched request counts as
	// written.
	ConfirmWrites bool
}

// Client reads and appends alumni records.
type Client struct {
	options    Options
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a store client.
func NewClient(options Options, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		options:    options,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// ListRecords fetches every record from the store.
//
// Only a failure to reach the store is an error (ErrStoreUnavailable). Error
// statuses and malformed payloads are logged and produce no records. Rows
// without a first name or a city are dropped, rows without valid coordinates
// (missing, non numeric or out of range) are kept with nil Coordinates.
func (c *Client) ListRecords(ctx context.Context) ([]alumni.Record, error) {
	if c.options.URL == "" {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, ErrNotConfigured)
	}

	reqURL, err := c.listURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrStoreUnavailable, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️  Record store returned HTTP %d, assuming no records", resp.StatusCode)

		return nil, nil
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Printf("⚠️  Record store returned an unreadable payload, assuming no records: %v", err)

		return nil, nil
	}

	rows, ok := payload.([]any)
	if !ok {
		log.Printf("⚠️  Record store did not return an array (%T), assuming no records", payload)

		return nil, nil
	}

	records := make([]alumni.Record, 0, len(rows))
	taken := make(map[string]bool, len(rows))

	for _, row := range rows {
		entry, ok := row.(map[string]any)
		if !ok {
			continue
		}

		record, ok := parseEntry(entry)
		if !ok {
			continue
		}

		record.ID = uniqueID(taken, record.Timestamp)
		records = append(records, record)
	}

	return records, nil
}

// uniqueID derives a record id from its store timestamp. Repeated timestamps
// (bulk imports, date-only cells) get a positional suffix so the same rows
// keep the same ids across loads. Rows without a timestamp get a random id.
func uniqueID(taken map[string]bool, timestamp string) string {
	if timestamp == "" {
		return uuid.NewString()
	}

	id := timestamp
	for n := 2; taken[id]; n++ {
		id = fmt.Sprintf("%s#%d", timestamp, n)
	}

	taken[id] = true

	return id
}

// listURL appends a cache buster so intermediaries never serve a stale list.
func (c *Client) listURL() (string, error) {
	u, err := url.Parse(c.options.URL)
	if err != nil {
		return "", fmt.Errorf("parsing store URL: %w", err)
	}

	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

type appendPayload struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	City      string  `json:"city"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

// AppendRecord submits a record to the store.
//
// The write is at most once and, unless ConfirmWrites is set, unconfirmed:
// true means the request went out without a transport error, not that the
// row was stored.
func (c *Client) AppendRecord(ctx context.Context, record alumni.Record) (bool, error) {
	if c.options.URL == "" {
		return false, fmt.Errorf("%w: %w", ErrStoreWriteFailed, ErrNotConfigured)
	}

	if record.Coordinates == nil {
		return false, fmt.Errorf("%w: record %s has no coordinates", ErrStoreWriteFailed, record.ID)
	}

	body, err := json.Marshal(appendPayload{
		FirstName: record.FirstName,
		LastName:  record.LastName,
		City:      record.City,
		Lat:       record.Coordinates.Lat,
		Lng:       record.Coordinates.Lng,
	})
	if err != nil {
		return false, fmt.Errorf("%w: encoding record: %w", ErrStoreWriteFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: building request: %w", ErrStoreWriteFailed, err)
	}

	// Apps Script refuses the preflight a JSON content type would trigger; it
	// reads the raw body either way.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}

	_, copyErr := io.Copy(io.Discard, resp.Body)
	if err := errors.Join(copyErr, resp.Body.Close()); err != nil {
		log.Printf("Discarding record store answer: %v", err)
	}

	if c.options.ConfirmWrites && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return false, fmt.Errorf("%w: HTTP %d", ErrStoreWriteUnconfirmed, resp.StatusCode)
	}

	return true, nil
}

func parseEntry(entry map[string]any) (alumni.Record, bool) {
	record := alumni.Record{
		FirstName: stringField(entry, "firstName"),
		LastName:  stringField(entry, "lastName"),
		City:      stringField(entry, "city"),
		Timestamp: stringField(entry, "timestamp"),
	}

	if record.FirstName == "" || record.City == "" {
		return alumni.Record{}, false
	}

	lat, okLat := numberField(entry, "lat")
	lng, okLng := numberField(entry, "lng")

	// an out of range pair is treated as absent so the backfill repairs it
	if p := (spatial.Point{Lat: lat, Lng: lng}); okLat && okLng && p.Validate() == nil {
		record.Coordinates = &p
	}

	return record, true
}

func stringField(entry map[string]any, key string) string {
	switch v := entry[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// numberField accepts JSON numbers and numeric strings, the sheet returns
// either depending on how the cell was typed.
func numberField(entry map[string]any, key string) (float64, bool) {
	var f float64

	switch v := entry[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}
