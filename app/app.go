// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package app ties the record store, the geocoder and the backfill together
// around the live alumni directory.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/backfill"
	"github.com/beccons/alumap/geocode"
	"github.com/beccons/alumap/spatial"
	"github.com/google/uuid"
)

var (
	// ErrInvalidProfile wraps the validation errors of a profile.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrGeocodeMiss means the city of a profile could not be located.
	ErrGeocodeMiss = errors.New("city not found")
	// ErrStoreWrite means the profile could not be sent to the store.
	ErrStoreWrite = errors.New("saving profile")
	// ErrNotReady is returned while the records are not loaded.
	ErrNotReady = errors.New("records not loaded")
)

// Store is the remote record store.
type Store interface {
	ListRecords(ctx context.Context) ([]alumni.Record, error)
	AppendRecord(ctx context.Context, record alumni.Record) (bool, error)
}

// Welcomer writes the message shown after a profile is added.
type Welcomer interface {
	Describe(ctx context.Context, city, name string) string
}

// Deps are the collaborators of an App. Resolver is shared between the
// profile form and the backfill so both benefit from the same cache.
type Deps struct {
	Store     Store
	Resolver  backfill.Resolver
	Welcomer  Welcomer
	Jitterer  *spatial.Jitterer
	Directory *alumni.Directory
}

// Options tunes an App.
type Options struct {
	Center  spatial.Point
	Palette []string

	Backfill backfill.Options
	// DisableBackfill keeps Load from starting a pass.
	DisableBackfill bool
}

// Profile is a freshly added record with its welcome message.
type Profile struct {
	Record  alumni.Record `json:"alumni"`
	Welcome string        `json:"welcome"`
}

// Status summarizes the application for the map header.
type Status struct {
	State   State `json:"state"`
	Visible int   `json:"visible"`
	Total   int   `json:"total"`
	// Version changes whenever the records do.
	Version  uint64             `json:"version"`
	Progress *backfill.Progress `json:"progress"`
	Error    string             `json:"error,omitempty"`
}

// App is the alumni map application.
type App struct {
	store       Store
	resolver    backfill.Resolver
	welcomer    Welcomer
	jitterer    *spatial.Jitterer
	directory   *alumni.Directory
	coordinator *backfill.Coordinator
	options     Options
	now         func() time.Time

	mu      sync.Mutex
	state   State
	loadErr error
	pass    *backfill.Handle
}

// New creates an App in the Loading state.
func New(deps Deps, options Options) *App {
	if deps.Directory == nil {
		deps.Directory = alumni.NewDirectory()
	}

	if len(options.Palette) == 0 {
		options.Palette = alumni.DefaultPalette
	}

	return &App{
		store:       deps.Store,
		resolver:    deps.Resolver,
		welcomer:    deps.Welcomer,
		jitterer:    deps.Jitterer,
		directory:   deps.Directory,
		coordinator: backfill.NewCoordinator(deps.Resolver, deps.Directory, deps.Jitterer, options.Backfill),
		options:     options,
		now:         time.Now,
		state:       StateLoading,
	}
}

// Directory returns the live records.
func (a *App) Directory() *alumni.Directory {
	return a.directory
}

// State returns the load state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Load fetches the records from the store and starts a backfill pass in the
// background for the records without coordinates.
//
// When the store can't be reached the App is left in the Error state and the
// error is returned. Calling Load again is the retry. A Load while Ready
// refreshes the records: coordinates found by earlier passes are kept (the
// store never receives them) and a new pass starts only once the previous one
// is over.
func (a *App) Load(ctx context.Context) error {
	a.mu.Lock()
	a.state = StateLoading
	a.loadErr = nil
	a.mu.Unlock()

	records, err := a.store.ListRecords(ctx)
	if err != nil {
		a.mu.Lock()
		a.state = StateError
		a.loadErr = err
		a.mu.Unlock()

		log.Printf("❌ Loading records: %v", err)

		return fmt.Errorf("loading records: %w", err)
	}

	a.directory.Replace(records)

	visible, total := a.directory.Counts()
	log.Printf("📚 Loaded %d records, %d on the map", total, visible)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = StateReady

	if a.options.DisableBackfill {
		return nil
	}

	snapshot := a.directory.Snapshot()

	if a.pass != nil {
		select {
		case <-a.pass.Done():
		default:
			// still running, its merges match the ids Replace kept
			return nil
		}

		if len(alumni.MissingCoordinates(snapshot)) == 0 {
			return nil
		}
	}

	// The pass outlives the request that triggered the load, Close stops it.
	h, err := a.coordinator.Start(context.WithoutCancel(ctx), snapshot)
	if err != nil {
		log.Printf("⚠️  Starting backfill: %v", err)

		return nil
	}

	a.pass = h

	return nil
}

// Backfill returns the handle of the latest automatic pass, nil when none started.
func (a *App) Backfill() *backfill.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.pass
}

// Close stops the background pass, if any, and waits for it.
func (a *App) Close() {
	if h := a.Backfill(); h != nil {
		h.Cancel()
		<-h.Done()
	}
}

// AddProfile validates the input, locates the city, stores the new record
// and adds it to the map.
//
// Nothing is stored or shown when the city can't be located, and nothing is
// shown when the store write fails.
func (a *App) AddProfile(ctx context.Context, input alumni.ProfileInput) (*Profile, error) {
	if a.State() != StateReady {
		return nil, ErrNotReady
	}

	input = input.Sanitize()
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	p, ok := a.resolver.Resolve(ctx, input.City)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGeocodeMiss, input.City)
	}

	jittered := a.jitterer.Apply(*p)

	record := alumni.Record{
		ID:          uuid.NewString(),
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		City:        input.City,
		Coordinates: &jittered,
		Timestamp:   a.now().UTC().Format(time.RFC3339),
	}

	sent, err := a.store.AppendRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	if !sent {
		return nil, ErrStoreWrite
	}

	welcome := geocode.FallbackWelcome
	if a.welcomer != nil {
		welcome = a.welcomer.Describe(ctx, input.City, input.FirstName)
	}

	a.directory.Append(record)

	log.Printf("🎉 Added %s from %s", record.DisplayName(), record.City)

	return &Profile{Record: record, Welcome: welcome}, nil
}

// Status returns the state, counts and backfill progress.
func (a *App) Status() Status {
	// read first, a change in between only costs the client an extra fetch
	version := a.directory.Version()
	visible, total := a.directory.Counts()

	a.mu.Lock()
	defer a.mu.Unlock()

	status := Status{
		State:    a.state,
		Visible:  visible,
		Total:    total,
		Version:  version,
		Progress: a.coordinator.Progress(),
	}

	if a.loadErr != nil {
		status.Error = a.loadErr.Error()
	}

	return status
}

// GeocodeStats returns the resolver counters when the resolver keeps any.
func (a *App) GeocodeStats() (geocode.ResolverStats, bool) {
	s, ok := a.resolver.(interface{ Stats() geocode.ResolverStats })
	if !ok {
		return geocode.ResolverStats{}, false
	}

	return s.Stats(), true
}

// Records returns a copy of every record.
func (a *App) Records() []alumni.Record {
	return a.directory.Snapshot()
}

// MapView returns the markers and the box that fits them.
func (a *App) MapView() *alumni.MapView {
	return alumni.NewMapView(a.directory.Snapshot(), a.options.Palette, a.options.Center)
}

// Clusters groups the located records by H3 cell at the given resolution.
func (a *App) Clusters(res int) ([]*alumni.Cluster, error) {
	return alumni.Clusters(a.directory.Snapshot(), res)
}
