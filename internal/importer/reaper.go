package importer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-env/wastestream/internal/blobstore"
	"github.com/veridian-env/wastestream/internal/model"
)

// ReaperConfig tunes the maintenance sweep.
type ReaperConfig struct {
	// MaxAttempts must match the processor's setting; expired runs at or over
	// it fail terminally. Default: 3.
	MaxAttempts int
	// Retention is how long a terminal run keeps its source file before the
	// reaper purges it. Default: 720h (30 days).
	Retention time.Duration
	// Interval is the sweep period when running as a loop. Default: 1m.
	Interval time.Duration
}

func (c ReaperConfig) withDefaults() ReaperConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Retention <= 0 {
		c.Retention = 720 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	return c
}

// ReapStats reports what one sweep did.
type ReapStats struct {
	Requeued int
	Failed   int
	Purged   int
}

// Reaper recovers runs abandoned by crashed workers and purges source files
// of old terminal runs. Expired leases are requeued so the next claim retries
// them; runs out of attempts fail terminally.
type Reaper struct {
	store *Store
	blobs blobstore.Gateway
	cfg   ReaperConfig
}

func NewReaper(store *Store, blobs blobstore.Gateway, cfg ReaperConfig) *Reaper {
	return &Reaper{store: store, blobs: blobs, cfg: cfg.withDefaults()}
}

// Run sweeps on the configured interval until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			zap.L().Error("reaper sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs one maintenance sweep.
func (r *Reaper) RunOnce(ctx context.Context) (ReapStats, error) {
	var stats ReapStats
	var err error

	if stats.Failed, err = r.failExhausted(ctx); err != nil {
		return stats, err
	}
	if stats.Requeued, err = r.requeueExpired(ctx); err != nil {
		return stats, err
	}
	if stats.Purged, err = r.purgeArtifacts(ctx); err != nil {
		return stats, err
	}

	if stats.Failed+stats.Requeued+stats.Purged > 0 {
		zap.L().Info("reaper sweep",
			zap.Int("requeued", stats.Requeued),
			zap.Int("failed", stats.Failed),
			zap.Int("purged", stats.Purged),
		)
	}
	return stats, nil
}

// failExhausted terminally fails expired runs that have consumed all their
// attempts.
func (r *Reaper) failExhausted(ctx context.Context) (int, error) {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = 'failed',
			processing_error = $2,
			progress_step = '',
			updated_at = now()
		WHERE status = 'processing'
			AND processing_available_at <= now()
			AND processing_attempts >= $1`,
		r.cfg.MaxAttempts,
		model.ErrCodeRetriesExhausted+": lease expired with no attempts remaining")
	if err != nil {
		return 0, eris.Wrap(err, "importer: reap exhausted runs")
	}
	return int(tag.RowsAffected()), nil
}

// requeueExpired makes abandoned runs visibly uploaded again. The claim query
// would pick them up regardless; this keeps run listings honest about runs no
// worker is actually holding.
func (r *Reaper) requeueExpired(ctx context.Context) (int, error) {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = 'uploaded', progress_step = '', updated_at = now()
		WHERE status = 'processing'
			AND processing_available_at <= now()
			AND processing_attempts < $1`,
		r.cfg.MaxAttempts)
	if err != nil {
		return 0, eris.Wrap(err, "importer: requeue expired runs")
	}
	return int(tag.RowsAffected()), nil
}

// purgeArtifacts deletes source files of terminal runs past retention. The
// delete is best-effort; artifacts_purged_at is set exactly once either way
// so a flaky object store cannot make the reaper hammer the same keys.
func (r *Reaper) purgeArtifacts(ctx context.Context) (int, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT id, source_file_key FROM import_runs
		WHERE status IN ('completed', 'failed', 'no_data')
			AND artifacts_purged_at IS NULL
			AND updated_at < now() - make_interval(secs => $1)
		LIMIT 100`,
		r.cfg.Retention.Seconds())
	if err != nil {
		return 0, eris.Wrap(err, "importer: select purgeable runs")
	}
	defer rows.Close()

	var ids, keys []string
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			return 0, eris.Wrap(err, "importer: scan purgeable run")
		}
		ids = append(ids, id)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "importer: iterate purgeable runs")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	r.blobs.Delete(ctx, keys)

	if _, err := r.store.pool.Exec(ctx, `
		UPDATE import_runs SET artifacts_purged_at = now(), updated_at = now()
		WHERE id = ANY($1) AND artifacts_purged_at IS NULL`, ids); err != nil {
		return 0, eris.Wrap(err, "importer: mark artifacts purged")
	}
	return len(ids), nil
}
