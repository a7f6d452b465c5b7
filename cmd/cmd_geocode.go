// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/beccons/alumap/backfill"
	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode [ville...]",
	Short: "Géocode des villes, une par ligne sur l'entrée standard si aucune n'est donnée",
	Long: `Outil de diagnostic: résout chaque ville avec le même cache que le serveur,
au même rythme, et affiche les coordonnées brutes (sans décalage de confidentialité).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		places := args
		if len(places) == 0 {
			places, err = readLines(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading places: %w", err)
			}
		}

		ctx := context.Background()
		resolver := newResolver(ctx, cfg, newHTTPClient(cfg))

		interval := cfg.Backfill.Interval
		if interval < backfill.MinInterval {
			interval = backfill.MinInterval
		}

		lookedUp := false

		for i, place := range places {
			// only a real lookup counts against the geocoder usage policy
			if lookedUp {
				time.Sleep(interval)
			}

			before := resolver.Stats().Lookups
			p, ok := resolver.Resolve(ctx, place)
			lookedUp = resolver.Stats().Lookups > before

			source := "cache"
			if lookedUp {
				source = "geocoder"
			}

			if !ok {
				fmt.Printf("[%d/%d] %-30s ✗ not found (%s)\n", i+1, len(places), place, source)

				continue
			}

			fmt.Printf("[%d/%d] %-30s %s (%s)\n", i+1, len(places), place, p, source)
		}

		stats := resolver.Stats()
		fmt.Printf("%d lookups, %d cache hits, %d failures, %d cached places\n",
			stats.Lookups, stats.Hits, stats.Failures, stats.Cached)

		return nil
	},
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	return lines, scanner.Err()
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
