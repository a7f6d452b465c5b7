// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beccons/alumap/alumni"
	"github.com/beccons/alumap/snapshot"
	"github.com/beccons/alumap/utils/textutils"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
)

var exportOptions = struct {
	DbPath string
	Res    int
}{}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exporte les anciens élèves localisés dans un fichier DuckDB",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		records, err := newStore(cfg, newHTTPClient(cfg)).ListRecords(context.Background())
		if err != nil {
			return fmt.Errorf("loading records: %w", err)
		}

		n, err := exportSnapshot(exportOptions.DbPath, records)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Exported %s of %s alumni to %s\n",
			textutils.FormatInt(int64(n)),
			textutils.FormatInt(int64(len(records))),
			exportOptions.DbPath)

		if exportOptions.Res == 0 {
			return nil
		}

		db, err := sql.Open("duckdb", exportOptions.DbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		counts, err := snapshot.NewSnapshotRepository(db).CountByCell(exportOptions.Res)
		if err != nil {
			return err
		}

		for _, c := range counts {
			fmt.Printf("%s  %-24s %s\n", c.Cell, c.Center, textutils.FormatInt(int64(c.Count)))
		}

		return nil
	},
}

// exportSnapshot writes the located records to the DuckDB file at path.
func exportSnapshot(path string, records []alumni.Record) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return 0, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	repo := snapshot.NewSnapshotRepository(db)
	if err := repo.CreateSchema(); err != nil {
		return 0, err
	}

	n, err := repo.SaveRecords(records)
	if err != nil {
		return 0, fmt.Errorf("saving snapshot: %w", err)
	}

	return n, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOptions.DbPath, "db", filepath.Join("db", "alumap.duckdb"), "Fichier DuckDB de destination")
	exportCmd.Flags().IntVar(&exportOptions.Res, "res", 0, "Affiche le nombre d'anciens élèves par cellule H3 (1 à 8)")
}
