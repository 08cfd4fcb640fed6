package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/importer"
	"github.com/veridian-env/wastestream/internal/model"
)

var runsFlags struct {
	tenant string
	status string
	limit  int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect import runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import runs for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		runs, err := importer.NewStore(pool).ListRuns(ctx, runsFlags.tenant,
			model.RunStatus(runsFlags.status), runsFlags.limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tFILE\tITEMS\tATTEMPTS\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				r.ID, r.Status, r.SourceFileName, r.TotalItems,
				r.ProcessingAttempts, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Print one import run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		run, err := importer.NewStore(pool).GetRun(ctx, runsFlags.tenant, args[0])
		if err != nil {
			return err
		}
		return printJSON(run)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsFlags.tenant, "tenant", "", "tenant id (required)")
	_ = runsCmd.MarkPersistentFlagRequired("tenant")
	runsListCmd.Flags().StringVar(&runsFlags.status, "status", "", "filter by run status")
	runsListCmd.Flags().IntVar(&runsFlags.limit, "limit", 50, "maximum rows to return")
	runsCmd.AddCommand(runsListCmd, runsGetCmd)
	rootCmd.AddCommand(runsCmd)
}
