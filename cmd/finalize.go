package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/importer"
)

var finalizeFlags struct {
	tenant string
	run    string
	by     string
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Materialize a reviewed run into production records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		summary, err := importer.NewFinalizer(pool).Finalize(ctx,
			finalizeFlags.tenant, finalizeFlags.run, finalizeFlags.by)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s finalized\n", finalizeFlags.run)
		return printJSON(summary)
	},
}

func init() {
	finalizeCmd.Flags().StringVar(&finalizeFlags.tenant, "tenant", "", "tenant id (required)")
	finalizeCmd.Flags().StringVar(&finalizeFlags.run, "run", "", "run id (required)")
	finalizeCmd.Flags().StringVar(&finalizeFlags.by, "by", "", "user id finalizing the run")
	_ = finalizeCmd.MarkFlagRequired("tenant")
	_ = finalizeCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(finalizeCmd)
}
