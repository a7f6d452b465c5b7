// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/backfill"
	"github.com/beccons/alumap/spatial"
	"github.com/beccons/alumap/utils/textutils"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var backfillSnapshotPath string

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Localise les anciens élèves sans coordonnées",
	Long: `Charge les profils, géocode au rythme autorisé par le service ceux qui n'ont
pas de coordonnées et affiche le résultat. La feuille de calcul n'est pas modifiée,
utilisez --snapshot pour conserver le résultat dans un fichier DuckDB.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client := newHTTPClient(cfg)

		records, err := newStore(cfg, client).ListRecords(ctx)
		if err != nil {
			return fmt.Errorf("loading records: %w", err)
		}

		directory := alumni.NewDirectory()
		directory.Replace(records)

		missing := len(alumni.MissingCoordinates(records))
		if missing == 0 {
			fmt.Println("✅ Every alumni is already on the map")

			return nil
		}

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(missing,
				progressbar.OptionSetDescription("Geocoding"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		resolver := newResolver(ctx, cfg, client)
		coordinator := backfill.NewCoordinator(resolver, directory, spatial.NewJitterer(cfg.Map.JitterRadius), backfill.Options{
			Interval:   cfg.Backfill.Interval,
			DrainDelay: -1,
			OnProgress: func(p *backfill.Progress) {
				if bar == nil || p == nil {
					return
				}

				if err := bar.Set(p.Current); err != nil {
					log.Printf("Updating progress bar: %v", err)
				}
			},
		})

		h, err := coordinator.Start(ctx, records)
		if err != nil {
			return err
		}

		result, err := h.Wait()
		if bar != nil {
			_ = bar.Finish()
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		stats := resolver.Stats()
		visible, total := directory.Counts()
		fmt.Printf("✅ %s resolved, %s not found, %s/%s alumni on the map (%s lookups, %s cache hits)\n",
			textutils.FormatInt(int64(result.Resolved)),
			textutils.FormatInt(int64(result.Missed)),
			textutils.FormatInt(int64(visible)),
			textutils.FormatInt(int64(total)),
			textutils.FormatInt(stats.Lookups),
			textutils.FormatInt(stats.Hits),
		)

		if backfillSnapshotPath != "" {
			n, err := exportSnapshot(backfillSnapshotPath, directory.Snapshot())
			if err != nil {
				return err
			}

			fmt.Printf("💾 Saved %s located alumni to %s\n", textutils.FormatInt(int64(n)), backfillSnapshotPath)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().StringVar(&backfillSnapshotPath, "snapshot", "", "Fichier DuckDB où enregistrer le résultat")
}
