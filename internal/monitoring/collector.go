package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veridian-env/wastestream/internal/db"
)

// MetricsSnapshot holds a point-in-time view of import pipeline health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal       int     `json:"runs_total"`
	RunsCompleted   int     `json:"runs_completed"`
	RunsFailed      int     `json:"runs_failed"`
	RunsNoData      int     `json:"runs_no_data"`
	RunsQueued      int     `json:"runs_queued"`
	RunsProcessing  int     `json:"runs_processing"`
	RunsReviewReady int     `json:"runs_review_ready"`
	RunFailRate     float64 `json:"run_fail_rate"`

	// StaleLeases counts processing runs whose lease has expired. The reaper
	// normally clears these within one sweep; a persistent count means
	// workers are crashing or the reaper is not running.
	StaleLeases int `json:"stale_leases"`

	// ReviewBacklog counts items still pending review on reviewable runs.
	ReviewBacklog int `json:"review_backlog"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

const collectRunsSQL = `
SELECT
	count(*),
	count(*) FILTER (WHERE status = 'completed'),
	count(*) FILTER (WHERE status = 'failed'),
	count(*) FILTER (WHERE status = 'no_data'),
	count(*) FILTER (WHERE status = 'uploaded'),
	count(*) FILTER (WHERE status = 'processing'),
	count(*) FILTER (WHERE status = 'review_ready'),
	count(*) FILTER (WHERE status = 'processing' AND processing_available_at <= now())
FROM import_runs
WHERE created_at >= now() - make_interval(secs => $1)`

const collectBacklogSQL = `
SELECT count(*)
FROM import_items i
JOIN import_runs r ON r.id = i.run_id
WHERE i.status = 'pending_review' AND r.status = 'review_ready'`

// Collector gathers pipeline metrics from the database.
type Collector struct {
	pool db.Querier
}

// NewCollector creates a metrics collector.
func NewCollector(pool db.Querier) *Collector {
	return &Collector{pool: pool}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	lookbackSecs := float64(lookbackHours) * 3600
	err := c.pool.QueryRow(ctx, collectRunsSQL, lookbackSecs).Scan(
		&snap.RunsTotal,
		&snap.RunsCompleted,
		&snap.RunsFailed,
		&snap.RunsNoData,
		&snap.RunsQueued,
		&snap.RunsProcessing,
		&snap.RunsReviewReady,
		&snap.StaleLeases,
	)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect run metrics")
	}

	if err := c.pool.QueryRow(ctx, collectBacklogSQL).Scan(&snap.ReviewBacklog); err != nil {
		return nil, eris.Wrap(err, "monitoring: collect review backlog")
	}

	if finished := snap.RunsCompleted + snap.RunsFailed + snap.RunsNoData; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	return snap, nil
}
