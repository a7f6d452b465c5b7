// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/beccons/alumap/config"
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "alumap",
	Short: "carte des anciens élèves",
	Long: `
alumap affiche sur une carte les anciens élèves enregistrés dans une feuille de
calcul, localise leurs villes en arrière-plan et permet d'ajouter un profil.
`,
	SilenceUsage: true,
}

var Version = "dev"

// rootOptions are the flags shared by every command. They win over the
// configuration file and the environment.
type rootOptions struct {
	ConfigPath    string
	StoreURL      string
	Geocoder      string
	GeocoderURL   string
	HTTPTrace     bool
	HTTPBodyTrace bool
}

var rootOpts = &rootOptions{}

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("store-url") {
		cfg.Store.URL = rootOpts.StoreURL
	}

	if flags.Changed("geocoder") {
		cfg.Geocoder.Provider = rootOpts.Geocoder
	}

	if flags.Changed("geocoder-url") {
		cfg.Geocoder.URL = rootOpts.GeocoderURL
	}

	if flags.Changed("http-trace") {
		cfg.HTTP.Trace = rootOpts.HTTPTrace
	}

	if flags.Changed("http-body-trace") {
		cfg.HTTP.BodyTrace = rootOpts.HTTPBodyTrace
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOpts.ConfigPath, "config", "", "Fichier de configuration YAML")
	flags.StringVar(&rootOpts.StoreURL, "store-url", "", "URL du script de la feuille de calcul")
	flags.StringVar(&rootOpts.Geocoder, "geocoder", config.GeocoderNominatim, "Service de géocodage: nominatim ou google")
	flags.StringVar(&rootOpts.GeocoderURL, "geocoder-url", "", "URL alternative du service de géocodage")
	flags.BoolVar(&rootOpts.HTTPTrace, "http-trace", false, "Trace les requêtes HTTP")
	flags.BoolVar(&rootOpts.HTTPBodyTrace, "http-body-trace", false, "Trace les requêtes HTTP avec leur contenu")
}
