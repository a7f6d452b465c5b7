// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package backfill fills in the coordinates of records that were stored
// without them, one geocoding request at a time.
package backfill

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/spatial"
)

const (
	// DefaultInterval keeps us under the public geocoder usage policy of one
	// request per second.
	DefaultInterval = 1100 * time.Millisecond

	// MinInterval is the lowest interval the geocoder tolerates.
	MinInterval = time.Second

	// DefaultDrainDelay is how long the final progress stays visible.
	DefaultDrainDelay = time.Second
)

// ErrPassRunning is returned when a pass is started while another one is in
// flight.
var ErrPassRunning = errors.New("backfill pass already running")

// Resolver turns a place name into a point.
type Resolver interface {
	Resolve(ctx context.Context, place string) (*spatial.Point, bool)
}

// Merger receives resolved coordinates.
type Merger interface {
	MergeCoordinates(id string, p spatial.Point) bool
}

// Progress reports how many items of the pass have been attempted.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ProgressFunc is called after every attempt and with nil when the pass is
// over. Calls come from the pass goroutine, in order.
type ProgressFunc func(*Progress)

// State of the coordinator.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Options configures a Coordinator. Zero durations get the defaults, a
// negative DrainDelay ends the pass right after the last item.
type Options struct {
	// Interval is the wait before every geocoding attempt, including the first.
	Interval   time.Duration
	DrainDelay time.Duration
	OnProgress ProgressFunc
}

// Coordinator runs backfill passes. At most one pass runs at a time.
type Coordinator struct {
	resolver Resolver
	merger   Merger
	jitterer *spatial.Jitterer
	options  Options

	mu       sync.Mutex
	state    State
	progress *Progress
}

// NewCoordinator creates a coordinator.
func NewCoordinator(resolver Resolver, merger Merger, jitterer *spatial.Jitterer, options Options) *Coordinator {
	if options.Interval <= 0 {
		options.Interval = DefaultInterval
	}

	if options.DrainDelay < 0 {
		options.DrainDelay = 0
	} else if options.DrainDelay == 0 {
		options.DrainDelay = DefaultDrainDelay
	}

	return &Coordinator{
		resolver: resolver,
		merger:   merger,
		jitterer: jitterer,
		options:  options,
	}
}

// State returns the current pass state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Progress returns a copy of the current progress, nil when no pass runs.
func (c *Coordinator) Progress() *Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil {
		return nil
	}

	p := *c.progress

	return &p
}

// Start begins a pass over the records missing coordinates and returns
// without waiting for it.
//
// The work list is fixed when the pass starts: records added or changed
// afterwards are not picked up until the next pass.
func (c *Coordinator) Start(ctx context.Context, records []alumni.Record) (*Handle, error) {
	work := alumni.MissingCoordinates(records)

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()

		return nil, ErrPassRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{done: make(chan struct{}), cancel: cancel}

	if len(work) == 0 {
		c.mu.Unlock()
		cancel()
		close(h.done)

		return h, nil
	}

	c.state = StateRunning
	c.mu.Unlock()

	log.Printf("🧭 Backfilling coordinates for %d records", len(work))

	go func() {
		defer close(h.done)
		defer cancel()

		h.result, h.err = c.run(ctx, work)
	}()

	return h, nil
}

func (c *Coordinator) run(ctx context.Context, work []alumni.Record) (Result, error) {
	var result Result

	defer c.finish()

	n := len(work)

	for i, record := range work {
		if err := sleep(ctx, c.options.Interval); err != nil {
			log.Printf("[%d/%d] Backfill cancelled: %v", i+1, n, err)

			return result, err
		}

		if p, ok := c.resolver.Resolve(ctx, record.City); ok {
			jittered := c.jitterer.Apply(*p)
			c.merger.MergeCoordinates(record.ID, jittered)
			result.Resolved++

			log.Printf("[%d/%d] 📍 %s → %s", i+1, n, record.City, jittered)
		} else {
			result.Missed++

			log.Printf("[%d/%d] 📭 %s not found, skipping", i+1, n, record.City)
		}

		c.publish(&Progress{Current: i + 1, Total: n})
	}

	c.mu.Lock()
	c.state = StateDraining
	c.mu.Unlock()

	log.Printf("✅ Backfill done: %d resolved, %d missed", result.Resolved, result.Missed)

	if err := sleep(ctx, c.options.DrainDelay); err != nil {
		return result, err
	}

	return result, nil
}

func (c *Coordinator) publish(p *Progress) {
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()

	if c.options.OnProgress != nil {
		if p != nil {
			cp := *p
			p = &cp
		}

		c.options.OnProgress(p)
	}
}

func (c *Coordinator) finish() {
	c.publish(nil)

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Result summarizes a finished pass.
type Result struct {
	Resolved int
	Missed   int
}

// Handle controls a pass started in the background.
type Handle struct {
	done   chan struct{}
	cancel context.CancelFunc
	result Result
	err    error
}

// Done is closed when the pass is over.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the pass is over. The error is non-nil only when the
// pass was cancelled.
func (h *Handle) Wait() (Result, error) {
	<-h.done

	return h.result, h.err
}

// Cancel stops the pass at its next wait. Merges already applied stay.
func (h *Handle) Cancel() {
	h.cancel()
}

// Result returns the outcome of a finished pass, zero while it runs.
func (h *Handle) Result() Result {
	select {
	case <-h.done:
		return h.result
	default:
		return Result{}
	}
}
