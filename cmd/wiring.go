// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/beccons/alumap/app"
	"github.com/beccons/alumap/config"
	"github.com/beccons/alumap/geocode"
	"github.com/beccons/alumap/sheet"
	"github.com/beccons/alumap/spatial"
	"github.com/beccons/alumap/utils/httputils"
)

func userAgent(cfg *config.Config) string {
	if cfg.HTTP.UserAgent != "" {
		return cfg.HTTP.UserAgent
	}

	return fmt.Sprintf("alumap/%s (+https://github.com/beccons/alumap)", Version)
}

func newHTTPClient(cfg *config.Config) *http.Client {
	return httputils.NewClient(&httputils.ClientOptions{
		UserAgent:           userAgent(cfg),
		Timeout:             cfg.HTTP.Timeout,
		EnableHTTPTrace:     cfg.HTTP.Trace,
		EnableHTTPBodyTrace: cfg.HTTP.BodyTrace,
	})
}

func newStore(cfg *config.Config, client *http.Client) *sheet.Client {
	return sheet.NewClient(sheet.Options{
		URL:           cfg.Store.URL,
		ConfirmWrites: cfg.Store.ConfirmWrites,
	}, client)
}

func newGeocoder(ctx context.Context, cfg *config.Config, client *http.Client) geocode.Geocoder {
	if cfg.Geocoder.Provider != config.GeocoderGoogle {
		fmt.Println("📍 Geocoding: Nominatim")

		return geocode.NewNominatimGeocoder(cfg.Geocoder.URL, client)
	}

	apiKey := cfg.Geocoder.GoogleAPIKey
	if apiKey == "" {
		log.Println("GOOGLE_MAPS_API_KEY is not set. Attempting to retrieve via ADC...")

		var err error

		apiKey, err = geocode.LookupAPIKeyFromADC(ctx, cfg.Geocoder.GoogleProject, cfg.Geocoder.GoogleKeyName)
		if err != nil {
			log.Printf("Failed to retrieve API key via ADC: %v", err)
		} else {
			log.Println("✅ Successfully retrieved Google Maps API Key via ADC")
		}
	}

	fmt.Println("📍 Geocoding: Google Maps")

	return geocode.NewGoogleMapsGeocoder(apiKey, cfg.Geocoder.URL, client)
}

func newWelcomer(cfg *config.Config, client *http.Client) *geocode.Welcomer {
	return geocode.NewWelcomer(cfg.Welcome.APIKey, cfg.Welcome.Model, cfg.Welcome.URL, client)
}

func newResolver(ctx context.Context, cfg *config.Config, client *http.Client) *geocode.Resolver {
	return geocode.NewResolver(newGeocoder(ctx, cfg, client), geocode.NewCache())
}

func newApp(ctx context.Context, cfg *config.Config) *app.App {
	client := newHTTPClient(cfg)

	return app.New(app.Deps{
		Store:    newStore(cfg, client),
		Resolver: newResolver(ctx, cfg, client),
		Welcomer: newWelcomer(cfg, client),
		Jitterer: spatial.NewJitterer(cfg.Map.JitterRadius),
	}, app.Options{
		Center:          cfg.Map.Center,
		Palette:         cfg.Map.Palette,
		Backfill:        cfg.Backfill.CoordinatorOptions(),
		DisableBackfill: cfg.Backfill.Disabled,
	})
}
