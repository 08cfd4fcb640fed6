package importer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veridian-env/wastestream/internal/model"
	"github.com/veridian-env/wastestream/internal/resilience"
)

// Claimer hands out leased runs; satisfied by *Queue.
type Claimer interface {
	ClaimNextRun(ctx context.Context) (*model.ImportRun, error)
}

// RunProcessor drives one claimed run to its next state; satisfied by
// *Processor.
type RunProcessor interface {
	Process(ctx context.Context, run *model.ImportRun) error
}

// WorkerConfig tunes the poll loop.
type WorkerConfig struct {
	// PollInterval is the base delay after an empty claim. Default: 2s.
	PollInterval time.Duration
	// MaxPollDelay caps both the empty-queue and error backoffs. Default: 30s.
	MaxPollDelay time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxPollDelay <= 0 {
		c.MaxPollDelay = 30 * time.Second
	}
	return c
}

// Worker claims runs off the lease queue and processes them until its context
// is canceled. Cancellation is honored between claim-process units, never
// inside one: a run that started processing finishes its state write.
type Worker struct {
	name  string
	queue Claimer
	proc  RunProcessor
	cfg   WorkerConfig
}

func NewWorker(name string, queue Claimer, proc RunProcessor, cfg WorkerConfig) *Worker {
	return &Worker{name: name, queue: queue, proc: proc, cfg: cfg.withDefaults()}
}

// Run is the poll loop. Empty claims back off exponentially with jitter so a
// fleet of idle workers does not poll in lockstep; claim errors back off on
// their own streak. Both reset after a successful claim.
func (w *Worker) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("worker", w.name))
	log.Info("worker started")

	emptyStreak := 0
	errorStreak := 0
	for {
		if err := ctx.Err(); err != nil {
			log.Info("worker stopped")
			return err
		}

		// The claim-process-commit unit runs detached from the loop
		// context: a shutdown mid-unit must not abort the state writes
		// that return or fail the claimed run, or the run would sit
		// stranded until its lease expires.
		unit := context.WithoutCancel(ctx)

		run, err := w.queue.ClaimNextRun(unit)
		switch {
		case err != nil:
			errorStreak++
			delay := resilience.Backoff(errorStreak-1, w.cfg.PollInterval, w.cfg.MaxPollDelay, 2.0, 0.25)
			log.Error("claim failed", zap.Error(err), zap.Duration("backoff", delay))
			if !sleep(ctx, delay) {
				continue
			}

		case run == nil:
			emptyStreak++
			delay := resilience.Backoff(emptyStreak-1, w.cfg.PollInterval, w.cfg.MaxPollDelay, 2.0, 0.25)
			if !sleep(ctx, delay) {
				continue
			}

		default:
			emptyStreak = 0
			errorStreak = 0
			if err := w.proc.Process(unit, run); err != nil {
				log.Error("processing failed",
					zap.String("run_id", run.ID),
					zap.Error(err),
				)
			}
		}
	}
}

// sleep waits for d or until ctx is done; reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
