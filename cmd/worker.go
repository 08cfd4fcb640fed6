package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/veridian-env/wastestream/internal/blobstore"
	"github.com/veridian-env/wastestream/internal/entities"
	"github.com/veridian-env/wastestream/internal/extraction"
	"github.com/veridian-env/wastestream/internal/importer"
	"github.com/veridian-env/wastestream/internal/monitoring"
	"github.com/veridian-env/wastestream/pkg/anthropic"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run import workers and the reaper until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := newPool(ctx, "worker")
		if err != nil {
			return err
		}
		defer pool.Close()

		blobs, err := blobstore.NewFS(cfg.Blobstore.Root)
		if err != nil {
			return err
		}

		extractor := extraction.NewClaudeExtractor(
			anthropic.NewClient(cfg.Anthropic.Key),
			extraction.ClaudeConfig{
				Model:             cfg.Anthropic.Model,
				MaxTokens:         cfg.Anthropic.MaxTokens,
				RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
			},
		)

		store := importer.NewStore(pool)
		queue := importer.NewQueue(pool, cfg.Import.Lease())
		reconciler := importer.NewReconciler(importer.ReconcilerConfig{
			ReviewThreshold: cfg.Import.ReviewThreshold,
			CandidateFloor:  cfg.Import.CandidateFloor,
			MaxCandidates:   cfg.Import.MaxCandidates,
		}, nil)
		processor := importer.NewProcessor(store, blobs, extractor, reconciler,
			entities.NewStore(pool), importer.ProcessorConfig{
				MaxAttempts:   cfg.Import.MaxAttempts,
				RequeueDelay:  cfg.Import.RequeueDelay(),
				LowConfidence: cfg.Import.LowConfidence,
			})
		reaper := importer.NewReaper(store, blobs, importer.ReaperConfig{
			MaxAttempts: cfg.Import.MaxAttempts,
			Retention:   cfg.Reaper.Retention(),
			Interval:    cfg.Reaper.Interval(),
		})

		workerCfg := importer.WorkerConfig{
			PollInterval: cfg.Import.PollInterval(),
			MaxPollDelay: cfg.Import.MaxPollDelay(),
		}

		g, ctx := errgroup.WithContext(ctx)
		for i := 0; i < cfg.Import.Workers; i++ {
			w := importer.NewWorker(fmt.Sprintf("worker-%d", i), queue, processor, workerCfg)
			g.Go(func() error { return w.Run(ctx) })
		}
		g.Go(func() error { return reaper.Run(ctx) })

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(pool),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			g.Go(func() error {
				checker.Run(ctx)
				return nil
			})
		}

		fmt.Printf("Running %d workers (ctrl-c to stop)\n", cfg.Import.Workers)
		err = g.Wait()
		if ctx.Err() != nil {
			fmt.Println("Shut down cleanly")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
