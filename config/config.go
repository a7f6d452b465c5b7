// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the alumap settings: defaults in code, an optional YAML
// file, then environment overrides. Command line flags are applied on top by
// the cmd package.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/backfill"
	"github.com/beccons/alumap/spatial"
	"gopkg.in/yaml.v3"
)

const (
	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"
)

// Config holds every setting of the application.
type Config struct {
	Listen   string         `yaml:"listen"`
	Store    StoreConfig    `yaml:"store"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Welcome  WelcomeConfig  `yaml:"welcome"`
	Backfill BackfillConfig `yaml:"backfill"`
	Map      MapConfig      `yaml:"map"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type StoreConfig struct {
	URL           string `yaml:"url"`
	ConfirmWrites bool   `yaml:"confirm_writes"`
}

type GeocoderConfig struct {
	// Provider is "nominatim" or "google".
	Provider string `yaml:"provider"`
	// URL overrides the provider endpoint.
	URL string `yaml:"url"`

	GoogleAPIKey string `yaml:"google_api_key"`
	// GoogleProject and GoogleKeyName locate the key through Application
	// Default Credentials when GoogleAPIKey is empty.
	GoogleProject string `yaml:"google_project"`
	GoogleKeyName string `yaml:"google_key_name"`
}

type WelcomeConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	URL    string `yaml:"url"`
}

type BackfillConfig struct {
	Disabled bool          `yaml:"disabled"`
	Interval time.Duration `yaml:"interval"`
	// DrainDelay keeps the final progress on screen after a pass, 0 for none.
	DrainDelay time.Duration `yaml:"drain_delay"`
}

// CoordinatorOptions maps the configuration onto the coordinator, where a
// zero drain delay means the default.
func (c BackfillConfig) CoordinatorOptions() backfill.Options {
	drain := c.DrainDelay
	if drain == 0 {
		drain = -1
	}

	return backfill.Options{Interval: c.Interval, DrainDelay: drain}
}

type MapConfig struct {
	Center spatial.Point `yaml:"center"`
	// JitterRadius is the full width, in degrees, of the privacy offset
	// applied on each axis.
	JitterRadius float64  `yaml:"jitter_radius"`
	Palette      []string `yaml:"palette"`
}

type HTTPConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Trace     bool          `yaml:"trace"`
	BodyTrace bool          `yaml:"body_trace"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Geocoder: GeocoderConfig{
			Provider:      GeocoderNominatim,
			GoogleKeyName: "Alumap Geocoding Key",
		},
		Backfill: BackfillConfig{
			Interval:   1100 * time.Millisecond,
			DrainDelay: time.Second,
		},
		Map: MapConfig{
			Center:       spatial.Point{Lat: 41.9028, Lng: 12.4964},
			JitterRadius: 0.025,
			Palette:      slices.Clone(alumni.DefaultPalette),
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads the defaults, the YAML file at path when not empty, and the
// environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("ALUMAP_STORE_URL"); ok && v != "" {
		c.Store.URL = v
	}

	if v, ok := lookup("GOOGLE_MAPS_API_KEY"); ok && v != "" {
		c.Geocoder.GoogleAPIKey = v
	}

	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if v, ok := lookup(name); ok && v != "" {
			c.Welcome.APIKey = v

			break
		}
	}
}

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Geocoder.Provider {
	case GeocoderNominatim, GeocoderGoogle:
	default:
		errs = append(errs, fmt.Errorf("unknown geocoder provider %q", c.Geocoder.Provider))
	}

	if c.Backfill.Interval < time.Second {
		errs = append(errs, fmt.Errorf("backfill interval must be at least 1s, got %s", c.Backfill.Interval))
	}

	if c.Backfill.DrainDelay < 0 {
		errs = append(errs, fmt.Errorf("backfill drain delay can't be negative, got %s", c.Backfill.DrainDelay))
	}

	if c.Map.JitterRadius < 0 || math.IsNaN(c.Map.JitterRadius) || math.IsInf(c.Map.JitterRadius, 0) {
		errs = append(errs, fmt.Errorf("jitter radius must be a non-negative number, got %v", c.Map.JitterRadius))
	}

	if err := c.Map.Center.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("map center: %w", err))
	}

	if len(c.Map.Palette) == 0 {
		errs = append(errs, errors.New("map palette can't be empty"))
	}

	for _, color := range c.Map.Palette {
		if !colorRe.MatchString(color) {
			errs = append(errs, fmt.Errorf("invalid palette color %q", color))
		}
	}

	if c.HTTP.Timeout < 0 {
		errs = append(errs, fmt.Errorf("http timeout can't be negative, got %s", c.HTTP.Timeout))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
