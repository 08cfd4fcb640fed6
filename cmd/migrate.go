package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/entities"
	"github.com/veridian-env/wastestream/internal/importer"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := entities.NewStore(pool).Migrate(ctx); err != nil {
			return err
		}
		if err := importer.NewStore(pool).Migrate(ctx); err != nil {
			return err
		}

		fmt.Println("Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
