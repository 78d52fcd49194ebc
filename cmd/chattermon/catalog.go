// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chattermon Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/chattermon/chattermon/internal/catalog"
)

// NewCatalogCmd creates the catalog subcommand.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate species datasets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a species dataset against the schema",
		Long: `Validate a species dataset file against the catalog JSON Schema,
format-version constraint, and referential rules. With no path the
embedded dataset is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCatalogValidate,
	})
	return cmd
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	var (
		cat *catalog.Catalog
		err error
	)
	if len(args) == 1 {
		cat, err = catalog.LoadFile(args[0])
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return err
	}
	cmd.Printf("catalog ok (format %s)\n", cat.Version())
	return nil
}
