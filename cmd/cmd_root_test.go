// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/beccons/alumap/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWriter(t *testing.T) {
	var buf bytes.Buffer

	w := &logWriter{writer: &buf}
	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} hello\n$`, buf.String())
}

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("Rome\n\n  Paris , France \n\t\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Rome", "Paris , France"}, lines)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Setenv("ALUMAP_STORE_URL", "https://env.example.com/exec")
	t.Setenv("GOOGLE_MAPS_API_KEY", "")

	c := &cobra.Command{Use: "test"}
	c.Flags().AddFlagSet(rootCmd.PersistentFlags())
	t.Cleanup(func() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})

	cfg, err := loadConfig(c)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/exec", cfg.Store.URL)
	assert.Equal(t, config.GeocoderNominatim, cfg.Geocoder.Provider)

	require.NoError(t, c.ParseFlags([]string{
		"--store-url", "https://flag.example.com/exec",
		"--geocoder", "google",
		"--http-trace",
	}))

	cfg, err = loadConfig(c)
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example.com/exec", cfg.Store.URL)
	assert.Equal(t, config.GeocoderGoogle, cfg.Geocoder.Provider)
	assert.True(t, cfg.HTTP.Trace)
	assert.False(t, cfg.HTTP.BodyTrace)
}

func TestLoadConfigRejectsInvalidFlags(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	c.Flags().AddFlagSet(rootCmd.PersistentFlags())
	t.Cleanup(func() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})

	require.NoError(t, c.ParseFlags([]string{"--geocoder", "bing"}))

	_, err := loadConfig(c)
	require.ErrorContains(t, err, `unknown geocoder provider "bing"`)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "backfill", "geocode", "export", "welcome"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}
