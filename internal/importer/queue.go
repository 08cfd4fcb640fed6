package importer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-env/wastestream/internal/db"
	"github.com/veridian-env/wastestream/internal/model"
)

// DefaultLease is how long a claimed run stays invisible to other workers.
const DefaultLease = 300 * time.Second

// Queue hands import runs to workers with lease-based exclusivity. Claims use
// FOR UPDATE SKIP LOCKED so concurrent workers never block on or double-claim
// the same run.
type Queue struct {
	pool  db.Pool
	lease time.Duration
}

func NewQueue(pool db.Pool, lease time.Duration) *Queue {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Queue{pool: pool, lease: lease}
}

// ClaimNextRun atomically claims the oldest available run: uploaded runs, and
// processing runs whose lease has expired. The claim moves the run to
// processing, stamps the lease window, and consumes an attempt. Returns
// (nil, nil) when nothing is claimable.
func (q *Queue) ClaimNextRun(ctx context.Context) (*model.ImportRun, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "importer: begin claim")
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM import_runs
		WHERE (status = 'uploaded' OR status = 'processing')
			AND processing_available_at <= now()
		ORDER BY processing_available_at, created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)

	run, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: claim select")
	}

	err = tx.QueryRow(ctx, `
		UPDATE import_runs
		SET status = 'processing',
			processing_started_at = now(),
			processing_available_at = now() + $2,
			processing_attempts = processing_attempts + 1,
			updated_at = now()
		WHERE id = $1
		RETURNING processing_attempts, processing_started_at, processing_available_at`,
		run.ID, q.lease).
		Scan(&run.ProcessingAttempts, &run.ProcessingStartedAt, &run.ProcessingAvailableAt)
	if err != nil {
		return nil, eris.Wrap(err, "importer: claim update")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "importer: commit claim")
	}

	run.Status = model.RunStatusProcessing
	zap.L().Info("claimed import run",
		zap.String("run_id", run.ID),
		zap.String("tenant_id", run.TenantID),
		zap.Int("attempt", run.ProcessingAttempts),
	)
	return run, nil
}
