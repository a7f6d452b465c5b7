// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/beccons/alumap/server"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sert la carte des anciens élèves",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("listen") {
			cfg.Listen = serveListen
		}

		if cfg.Store.URL == "" {
			return errors.New("no record store configured, use --store-url or ALUMAP_STORE_URL")
		}

		ctx := context.Background()
		a := newApp(ctx, cfg)
		defer a.Close()

		// A failed load leaves the map in the error state, the page offers a retry.
		if err := a.Load(ctx); err != nil {
			log.Printf("⚠️  Starting without records: %v", err)
		}

		fmt.Printf("📍 Open http://localhost%s in your browser\n", cfg.Listen)

		return server.NewServer(a).Run(cfg.Listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "Adresse d'écoute du serveur HTTP")
}
