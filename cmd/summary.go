package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/importer"
)

var summaryFlags struct {
	tenant string
}

var summaryCmd = &cobra.Command{
	Use:   "summary <run-id>",
	Short: "Print the finalize summary of a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		run, err := importer.NewStore(pool).GetRun(ctx, summaryFlags.tenant, args[0])
		if err != nil {
			return err
		}
		if run.Summary == nil {
			return eris.Errorf("run %s has no summary (status %s)", run.ID, run.Status)
		}
		return printJSON(run.Summary)
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryFlags.tenant, "tenant", "", "tenant id (required)")
	_ = summaryCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(summaryCmd)
}
