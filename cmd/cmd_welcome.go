// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var welcomeCmd = &cobra.Command{
	Use:   "welcome <ville> <prénom>",
	Short: "Affiche le message de bienvenue généré pour un nouveau profil",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if cfg.Welcome.APIKey == "" {
			fmt.Println("⚠️  GEMINI_API_KEY is not set, the fallback message is used")
		}

		welcomer := newWelcomer(cfg, newHTTPClient(cfg))
		fmt.Println(welcomer.Describe(context.Background(), args[0], args[1]))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(welcomeCmd)
}
