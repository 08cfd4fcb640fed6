package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/importer"
)

var orphansFlags struct {
	tenant   string
	run      string
	location string
	items    []string
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Recover project items left without a parent location",
}

var orphansImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Attach orphaned project items from a completed run to an existing location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		created, err := importer.NewOrphanImporter(pool).Import(ctx,
			orphansFlags.tenant, orphansFlags.run, orphansFlags.location, orphansFlags.items)
		if err != nil {
			return err
		}

		for itemID, projectID := range created {
			fmt.Printf("Item %s materialized as project %s\n", itemID, projectID)
		}
		return nil
	},
}

func init() {
	orphansImportCmd.Flags().StringVar(&orphansFlags.tenant, "tenant", "", "tenant id (required)")
	orphansImportCmd.Flags().StringVar(&orphansFlags.run, "run", "", "completed run id (required)")
	orphansImportCmd.Flags().StringVar(&orphansFlags.location, "location", "", "existing location id to attach projects to (required)")
	orphansImportCmd.Flags().StringSliceVar(&orphansFlags.items, "items", nil, "orphaned project item ids (required)")
	_ = orphansImportCmd.MarkFlagRequired("tenant")
	_ = orphansImportCmd.MarkFlagRequired("run")
	_ = orphansImportCmd.MarkFlagRequired("location")
	_ = orphansImportCmd.MarkFlagRequired("items")
	orphansCmd.AddCommand(orphansImportCmd)
	rootCmd.AddCommand(orphansCmd)
}
