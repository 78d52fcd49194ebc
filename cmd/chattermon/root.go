// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the chattermon CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chattermon",
		Short: "Chattermon - a collectible-creature game engine for chat rooms",
		Long: `Chattermon runs the server-side engine for a chat-room creature
game: spawns, claims, progression, battles, and trades.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCatalogCmd())

	return cmd
}
