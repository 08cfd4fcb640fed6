package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/blobstore"
	"github.com/veridian-env/wastestream/internal/importer"
)

var reaperCmd = &cobra.Command{
	Use:   "reaper",
	Short: "Run one maintenance sweep: requeue expired leases, fail exhausted runs, purge old artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		blobs, err := blobstore.NewFS(cfg.Blobstore.Root)
		if err != nil {
			return err
		}

		reaper := importer.NewReaper(importer.NewStore(pool), blobs, importer.ReaperConfig{
			MaxAttempts: cfg.Import.MaxAttempts,
			Retention:   cfg.Reaper.Retention(),
		})
		stats, err := reaper.RunOnce(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Requeued %d, failed %d, purged %d\n", stats.Requeued, stats.Failed, stats.Purged)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reaperCmd)
}
