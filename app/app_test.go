// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/backfill"
	"github.com/beccons/alumap/geocode"
	"github.com/beccons/alumap/sheet"
	"github.com/beccons/alumap/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jitterRadius = 0.025

var (
	rome  = spatial.Point{Lat: 41.9028, Lng: 12.4964}
	paris = spatial.Point{Lat: 48.8566, Lng: 2.3522}
)

// memoryStore is a Store kept in memory.
type memoryStore struct {
	mu        sync.Mutex
	records   []alumni.Record
	listErr   error
	appendErr error
	appended  []alumni.Record
	lists     int
}

func (s *memoryStore) ListRecords(context.Context) ([]alumni.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}

	return append([]alumni.Record(nil), s.records...), nil
}

func (s *memoryStore) AppendRecord(_ context.Context, record alumni.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return false, s.appendErr
	}

	s.appended = append(s.appended, record)

	return true, nil
}

func (s *memoryStore) Appended() []alumni.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]alumni.Record(nil), s.appended...)
}

// tableGeocoder answers from a fixed table, keyed by normalized place.
type tableGeocoder struct {
	places map[string]spatial.Point
	calls  atomic.Int64
}

func (g *tableGeocoder) Geocode(_ context.Context, query string) (*geocode.Result, error) {
	g.calls.Add(1)

	p, ok := g.places[geocode.NormalizeKey(query)]
	if !ok {
		return nil, &geocode.GeocodingError{Type: geocode.ErrorTypeNotFound, Message: "no results"}
	}

	return &geocode.Result{Latitude: p.Lat, Longitude: p.Lng, Provider: "table"}, nil
}

type staticWelcomer string

func (w staticWelcomer) Describe(context.Context, string, string) string {
	return string(w)
}

type fixture struct {
	app      *App
	store    *memoryStore
	geocoder *tableGeocoder
	resolver *geocode.Resolver
}

func newFixture(t *testing.T, records []alumni.Record, options Options) *fixture {
	t.Helper()

	store := &memoryStore{records: records}
	geocoder := &tableGeocoder{places: map[string]spatial.Point{"rome": rome, "paris": paris}}
	resolver := geocode.NewResolver(geocoder, geocode.NewCache())

	if options.Backfill.Interval == 0 {
		options.Backfill.Interval = time.Millisecond
	}

	if options.Backfill.DrainDelay == 0 {
		options.Backfill.DrainDelay = -1
	}

	a := New(Deps{
		Store:    store,
		Resolver: resolver,
		Welcomer: staticWelcomer("Benvenuto !"),
		Jitterer: spatial.NewJittererWithSource(jitterRadius, rand.New(rand.NewPCG(7, 11))),
	}, options)
	t.Cleanup(a.Close)

	return &fixture{app: a, store: store, geocoder: geocoder, resolver: resolver}
}

func TestLoadStartsBackfill(t *testing.T) {
	f := newFixture(t, []alumni.Record{
		{ID: "a", FirstName: "Anna", LastName: "Conti", City: "Paris", Coordinates: &paris},
		{ID: "b", FirstName: "Bea", LastName: "Russo", City: "Rome"},
	}, Options{})

	assert.Equal(t, StateLoading, f.app.State())

	require.NoError(t, f.app.Load(context.Background()))
	assert.Equal(t, StateReady, f.app.State())

	h := f.app.Backfill()
	require.NotNil(t, h)

	result, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, backfill.Result{Resolved: 1}, result)
	assert.Equal(t, int64(1), f.geocoder.calls.Load(), "only the record without coordinates is looked up")

	b, ok := f.app.Directory().Find("b")
	require.True(t, ok)
	require.NotNil(t, b.Coordinates)
	assert.InDelta(t, rome.Lat, b.Coordinates.Lat, jitterRadius/2)
	assert.InDelta(t, rome.Lng, b.Coordinates.Lng, jitterRadius/2)

	status := f.app.Status()
	assert.Equal(t, Status{State: StateReady, Visible: 2, Total: 2, Version: 2}, status, "one load, one merge")
}

func TestLoadFailureAndRetry(t *testing.T) {
	f := newFixture(t, []alumni.Record{{ID: "b", FirstName: "Bea", City: "Rome"}}, Options{})
	f.store.listErr = sheet.ErrStoreUnavailable

	err := f.app.Load(context.Background())
	require.ErrorIs(t, err, sheet.ErrStoreUnavailable)
	assert.Equal(t, StateError, f.app.State())
	assert.Nil(t, f.app.Backfill(), "no pass without records")
	assert.Equal(t, sheet.ErrStoreUnavailable.Error(), f.app.Status().Error)

	f.store.mu.Lock()
	f.store.listErr = nil
	f.store.mu.Unlock()

	require.NoError(t, f.app.Load(context.Background()))
	assert.Equal(t, StateReady, f.app.State())
	assert.Empty(t, f.app.Status().Error)

	h := f.app.Backfill()
	require.NotNil(t, h, "the retry starts the first pass")

	_, err = h.Wait()
	require.NoError(t, err)
}

func TestReloadKeepsBackfilledCoordinates(t *testing.T) {
	f := newFixture(t, []alumni.Record{{ID: "b", FirstName: "Bea", City: "Rome"}}, Options{})

	require.NoError(t, f.app.Load(context.Background()))
	first := f.app.Backfill()
	require.NotNil(t, first)

	_, err := first.Wait()
	require.NoError(t, err)

	located, ok := f.app.Directory().Find("b")
	require.True(t, ok)
	require.NotNil(t, located.Coordinates)

	require.NoError(t, f.app.Load(context.Background()))

	status := f.app.Status()
	assert.Equal(t, StateReady, status.State)
	assert.Equal(t, 1, status.Visible, "the store never holds backfilled coordinates")
	assert.Equal(t, 1, status.Total)

	reloaded, ok := f.app.Directory().Find("b")
	require.True(t, ok)
	assert.Equal(t, located.Coordinates, reloaded.Coordinates)

	assert.Same(t, first, f.app.Backfill(), "nothing left to locate")
	assert.EqualValues(t, 1, f.geocoder.calls.Load())
	assert.Equal(t, 2, f.store.lists)
}

func TestReloadLocatesNewRecords(t *testing.T) {
	f := newFixture(t, []alumni.Record{{ID: "b", FirstName: "Bea", City: "Rome", Timestamp: "t1"}}, Options{})

	require.NoError(t, f.app.Load(context.Background()))
	first := f.app.Backfill()
	_, err := first.Wait()
	require.NoError(t, err)

	f.store.mu.Lock()
	f.store.records = append(f.store.records, alumni.Record{ID: "c", FirstName: "Carla", City: "Paris", Timestamp: "t2"})
	f.store.mu.Unlock()

	require.NoError(t, f.app.Load(context.Background()))

	second := f.app.Backfill()
	require.NotSame(t, first, second)

	result, err := second.Wait()
	require.NoError(t, err)
	assert.Equal(t, backfill.Result{Resolved: 1}, result, "only the new record is looked up")

	visible, total := f.app.Directory().Counts()
	assert.Equal(t, 2, visible)
	assert.Equal(t, 2, total)
}

func TestReloadWhilePassRunning(t *testing.T) {
	f := newFixture(t, []alumni.Record{{FirstName: "Bea", City: "Rome", ID: "first-id"}},
		Options{Backfill: backfill.Options{Interval: time.Hour}})

	require.NoError(t, f.app.Load(context.Background()))
	pass := f.app.Backfill()
	require.NotNil(t, pass)

	// rows without a timestamp come back from the store with a new id
	f.store.mu.Lock()
	f.store.records[0].ID = "second-id"
	f.store.mu.Unlock()

	require.NoError(t, f.app.Load(context.Background()))
	assert.Same(t, pass, f.app.Backfill(), "no second pass while one is running")

	_, ok := f.app.Directory().Find("first-id")
	assert.True(t, ok, "the running pass still finds the record it merges into")

	pass.Cancel()
	_, err := pass.Wait()
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackfillNeverMovesLocatedRecordSharingItsID(t *testing.T) {
	f := newFixture(t, []alumni.Record{
		{ID: "2024-05-01", FirstName: "Anna", City: "Paris", Timestamp: "2024-05-01", Coordinates: &paris},
		{ID: "2024-05-01", FirstName: "Bea", City: "Rome", Timestamp: "2024-05-01"},
	}, Options{})

	require.NoError(t, f.app.Load(context.Background()))
	_, err := f.app.Backfill().Wait()
	require.NoError(t, err)

	records := f.app.Records()
	require.Len(t, records, 2)
	assert.Equal(t, paris, *records[0].Coordinates)
	require.NotNil(t, records[1].Coordinates)
	assert.InDelta(t, rome.Lat, records[1].Coordinates.Lat, jitterRadius/2)
}

func TestLoadWithBackfillDisabled(t *testing.T) {
	f := newFixture(t, []alumni.Record{{ID: "b", FirstName: "Bea", City: "Rome"}}, Options{DisableBackfill: true})

	require.NoError(t, f.app.Load(context.Background()))
	assert.Nil(t, f.app.Backfill())
	assert.Zero(t, f.geocoder.calls.Load())
}

func TestAddProfile(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.app.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)) }

	require.NoError(t, f.app.Load(context.Background()))

	profile, err := f.app.AddProfile(context.Background(), alumni.ProfileInput{
		FirstName: "  Giulia ",
		LastName:  "Bianchi",
		City:      "Rome",
	})
	require.NoError(t, err)

	assert.Equal(t, "Benvenuto !", profile.Welcome)
	assert.Equal(t, "Giulia", profile.Record.FirstName)
	assert.Equal(t, "2025-03-01T11:00:00Z", profile.Record.Timestamp)
	assert.NotEmpty(t, profile.Record.ID)
	require.NotNil(t, profile.Record.Coordinates)
	assert.InDelta(t, rome.Lat, profile.Record.Coordinates.Lat, jitterRadius/2)
	assert.InDelta(t, rome.Lng, profile.Record.Coordinates.Lng, jitterRadius/2)

	appended := f.store.Appended()
	require.Len(t, appended, 1)
	assert.Equal(t, profile.Record, appended[0])

	stored, ok := f.app.Directory().Find(profile.Record.ID)
	require.True(t, ok)
	assert.Equal(t, profile.Record, stored)

	visible, total := f.app.Directory().Counts()
	assert.Equal(t, 1, visible)
	assert.Equal(t, 1, total)
}

func TestAddProfileGeocodeMiss(t *testing.T) {
	f := newFixture(t, nil, Options{})
	require.NoError(t, f.app.Load(context.Background()))

	_, err := f.app.AddProfile(context.Background(), alumni.ProfileInput{
		FirstName: "Nora",
		LastName:  "Where",
		City:      "Nowhereville123",
	})
	require.ErrorIs(t, err, ErrGeocodeMiss)

	assert.Empty(t, f.store.Appended(), "nothing is written")
	_, total := f.app.Directory().Counts()
	assert.Zero(t, total, "nothing is shown")
}

func TestAddProfileInvalid(t *testing.T) {
	f := newFixture(t, nil, Options{})
	require.NoError(t, f.app.Load(context.Background()))

	_, err := f.app.AddProfile(context.Background(), alumni.ProfileInput{FirstName: "Nora", City: "Rome"})
	require.ErrorIs(t, err, ErrInvalidProfile)
	assert.Contains(t, err.Error(), "can't be empty")
	assert.Zero(t, f.geocoder.calls.Load(), "invalid input is never geocoded")
}

func TestAddProfileStoreFailure(t *testing.T) {
	f := newFixture(t, nil, Options{})
	require.NoError(t, f.app.Load(context.Background()))

	f.store.appendErr = sheet.ErrStoreWriteFailed

	_, err := f.app.AddProfile(context.Background(), alumni.ProfileInput{FirstName: "Giulia", LastName: "Bianchi", City: "Rome"})
	require.ErrorIs(t, err, ErrStoreWrite)
	require.ErrorIs(t, err, sheet.ErrStoreWriteFailed)

	_, total := f.app.Directory().Counts()
	assert.Zero(t, total, "failed writes are not shown")
}

func TestAddProfileNotReady(t *testing.T) {
	f := newFixture(t, nil, Options{})

	_, err := f.app.AddProfile(context.Background(), alumni.ProfileInput{FirstName: "Giulia", LastName: "Bianchi", City: "Rome"})
	require.ErrorIs(t, err, ErrNotReady)
}

func TestAddProfileSharesCacheWithBackfill(t *testing.T) {
	f := newFixture(t, []alumni.Record{
		{ID: "a", FirstName: "Anna", City: "PARIS"},
		{ID: "b", FirstName: "Bea", City: " paris"},
	}, Options{})

	require.NoError(t, f.app.Load(context.Background()))

	_, err := f.app.Backfill().Wait()
	require.NoError(t, err)

	_, err = f.app.AddProfile(context.Background(), alumni.ProfileInput{FirstName: "Carla", LastName: "Neri", City: "Paris"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.geocoder.calls.Load(), "every spelling of Paris is looked up once")
	assert.Equal(t, 1, f.resolver.Stats().Cached)
}

func TestMapViewAndClusters(t *testing.T) {
	f := newFixture(t, []alumni.Record{
		{ID: "a", FirstName: "Anna", LastName: "Conti", City: "Paris", Coordinates: &paris},
		{ID: "b", FirstName: "Bea", LastName: "Russo", City: "Rome", Coordinates: &rome},
		{ID: "c", FirstName: "Carla", City: "Atlantis"},
	}, Options{Center: rome, DisableBackfill: true})

	require.NoError(t, f.app.Load(context.Background()))

	view := f.app.MapView()
	assert.Equal(t, rome, view.Center)
	require.Len(t, view.Markers, 2)
	assert.Equal(t, "#003399", view.Markers[0].Color)
	assert.Equal(t, "#CC0000", view.Markers[1].Color)
	require.NotNil(t, view.Bounds)

	clusters, err := f.app.Clusters(1)
	require.NoError(t, err)
	require.NotEmpty(t, clusters)

	count := 0
	for _, c := range clusters {
		count += c.Count
	}

	assert.Equal(t, 2, count)
	assert.Len(t, f.app.Records(), 3)
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(Status{State: StateReady, Visible: 1, Total: 2, Version: 3, Progress: &backfill.Progress{Current: 1, Total: 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"ready","visible":1,"total":2,"version":3,"progress":{"current":1,"total":2}}`, string(data))

	data, err = json.Marshal(Status{State: StateError, Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"error","visible":0,"total":0,"version":0,"progress":null,"error":"boom"}`, string(data))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestWelcomeFallbackWithoutWelcomer(t *testing.T) {
	store := &memoryStore{}
	a := New(Deps{
		Store:    store,
		Resolver: geocode.NewResolver(&tableGeocoder{places: map[string]spatial.Point{"rome": rome}}, nil),
		Jitterer: spatial.NewJitterer(jitterRadius),
	}, Options{DisableBackfill: true})

	require.NoError(t, a.Load(context.Background()))

	profile, err := a.AddProfile(context.Background(), alumni.ProfileInput{FirstName: "Giulia", LastName: "Bianchi", City: "rome"})
	require.NoError(t, err)
	assert.Equal(t, geocode.FallbackWelcome, profile.Welcome)
}
