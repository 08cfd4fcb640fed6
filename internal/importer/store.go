// Package importer implements the bulk import pipeline: the run/item store,
// the durable lease queue, the processing worker, duplicate reconciliation,
// the review engine, the finalizer, and the reaper.
package importer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/veridian-env/wastestream/internal/db"
	"github.com/veridian-env/wastestream/internal/model"
)

const migrateSQL = `
CREATE TABLE IF NOT EXISTS import_runs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	company_id TEXT NOT NULL,
	entry_location_id TEXT,
	source_file_key TEXT NOT NULL,
	source_file_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'uploaded',
	progress_step TEXT NOT NULL DEFAULT '',
	processing_error TEXT NOT NULL DEFAULT '',
	processing_attempts INTEGER NOT NULL DEFAULT 0,
	processing_started_at TIMESTAMPTZ,
	processing_available_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	total_items INTEGER NOT NULL DEFAULT 0,
	accepted_count INTEGER NOT NULL DEFAULT 0,
	rejected_count INTEGER NOT NULL DEFAULT 0,
	amended_count INTEGER NOT NULL DEFAULT 0,
	invalid_count INTEGER NOT NULL DEFAULT 0,
	duplicate_count INTEGER NOT NULL DEFAULT 0,
	created_by TEXT NOT NULL DEFAULT '',
	finalized_by TEXT,
	finalized_at TIMESTAMPTZ,
	summary_data JSONB,
	artifacts_purged_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_import_runs_claim
	ON import_runs (processing_available_at, created_at)
	WHERE status IN ('uploaded', 'processing');
CREATE INDEX IF NOT EXISTS idx_import_runs_tenant ON import_runs (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS import_items (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	run_id TEXT NOT NULL REFERENCES import_runs(id),
	item_type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending_review',
	needs_review BOOLEAN NOT NULL DEFAULT false,
	confidence INTEGER,
	extracted_data JSONB NOT NULL,
	normalized_data JSONB NOT NULL,
	user_amendments JSONB,
	review_notes TEXT NOT NULL DEFAULT '',
	duplicate_candidates JSONB,
	confirm_create_new BOOLEAN NOT NULL DEFAULT false,
	selected_duplicate_id TEXT,
	parent_item_id TEXT REFERENCES import_items(id),
	created_location_id TEXT,
	created_project_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_import_items_run ON import_items (run_id, created_at);
CREATE INDEX IF NOT EXISTS idx_import_items_run_status ON import_items (run_id, status);
`

const runColumns = `id, tenant_id, company_id, entry_location_id, source_file_key, source_file_name,
	status, progress_step, processing_error, processing_attempts, processing_started_at,
	processing_available_at, total_items, accepted_count, rejected_count, amended_count,
	invalid_count, duplicate_count, created_by, finalized_by, finalized_at, summary_data,
	artifacts_purged_at, created_at, updated_at`

const itemColumns = `id, tenant_id, run_id, item_type, status, needs_review, confidence,
	extracted_data, normalized_data, user_amendments, review_notes, duplicate_candidates,
	confirm_create_new, selected_duplicate_id, parent_item_id, created_location_id,
	created_project_id, created_at, updated_at`

// Store persists import runs and items.
type Store struct {
	pool db.Pool
}

func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the import tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migrateSQL); err != nil {
		return eris.Wrap(err, "importer: migrate")
	}
	return nil
}

// CreateRun inserts a new run in the uploaded state, assigning an id when
// unset. The run becomes claimable immediately.
func (s *Store) CreateRun(ctx context.Context, run *model.ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.Status = model.RunStatusUploaded
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_runs (id, tenant_id, company_id, entry_location_id, source_file_key, source_file_name, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.TenantID, run.CompanyID, run.EntryLocationID,
		run.SourceFileKey, run.SourceFileName, run.Status, run.CreatedBy)
	if err != nil {
		return eris.Wrap(err, "importer: create run")
	}
	return nil
}

// GetRun fetches one run scoped to a tenant. Returns ErrNotFound when absent.
func (s *Store) GetRun(ctx context.Context, tenantID, runID string) (*model.ImportRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM import_runs WHERE tenant_id = $1 AND id = $2`,
		tenantID, runID)
	run, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: get run")
	}
	return run, nil
}

// ListRuns returns a tenant's runs newest first, optionally filtered by
// status. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, tenantID string, status model.RunStatus, limit int) ([]model.ImportRun, error) {
	query := `SELECT ` + runColumns + ` FROM import_runs WHERE tenant_id = $1`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "importer: list runs")
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "importer: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// InsertItems bulk-inserts a run's items via the COPY protocol.
func (s *Store) InsertItems(ctx context.Context, items []model.ImportItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(items))
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		if it.Status == "" {
			it.Status = model.ItemStatusPendingReview
		}
		candidates, err := marshalCandidates(it.DuplicateCandidates)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			it.ID, it.TenantID, it.RunID, string(it.Type), string(it.Status),
			it.NeedsReview, it.Confidence,
			[]byte(it.ExtractedData), []byte(it.NormalizedData), nilBytes(it.UserAmendments),
			it.ReviewNotes, candidates, it.ConfirmCreateNew, it.SelectedDuplicateID,
			it.ParentItemID, it.CreatedLocationID, it.CreatedProjectID,
		})
	}

	columns := []string{
		"id", "tenant_id", "run_id", "item_type", "status", "needs_review", "confidence",
		"extracted_data", "normalized_data", "user_amendments", "review_notes",
		"duplicate_candidates", "confirm_create_new", "selected_duplicate_id",
		"parent_item_id", "created_location_id", "created_project_id",
	}
	if _, err := db.CopyFrom(ctx, s.pool, "import_items", columns, rows); err != nil {
		return eris.Wrap(err, "importer: insert items")
	}
	return nil
}

// ListItems returns a run's items in insertion order, optionally filtered by
// status. limit <= 0 means no limit; offset supports pagination.
func (s *Store) ListItems(ctx context.Context, tenantID, runID string, status model.ItemStatus, limit, offset int) ([]model.ImportItem, error) {
	query := `SELECT ` + itemColumns + ` FROM import_items WHERE tenant_id = $1 AND run_id = $2`
	args := []any{tenantID, runID}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at, id`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "importer: list items")
	}
	defer rows.Close()

	var items []model.ImportItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, eris.Wrap(err, "importer: scan item")
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetItem fetches one item scoped to a tenant. Returns ErrNotFound when absent.
func (s *Store) GetItem(ctx context.Context, tenantID, itemID string) (*model.ImportItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM import_items WHERE tenant_id = $1 AND id = $2`,
		tenantID, itemID)
	item, err := scanItem(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: get item")
	}
	return item, nil
}

// SetProgress records the worker's current stage on a processing run.
func (s *Store) SetProgress(ctx context.Context, runID, step string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE import_runs SET progress_step = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing'`, runID, step)
	if err != nil {
		return eris.Wrap(err, "importer: set progress")
	}
	return nil
}

// MarkReviewReady transitions a processing run to review_ready with its item
// total. The status guard makes a stale worker's write a no-op.
func (s *Store) MarkReviewReady(ctx context.Context, runID string, totalItems int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = 'review_ready', total_items = $2, progress_step = '', processing_error = '', updated_at = now()
		WHERE id = $1 AND status = 'processing'`, runID, totalItems)
	if err != nil {
		return eris.Wrap(err, "importer: mark review ready")
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// MarkNoData transitions a processing run to the no_data terminal state.
func (s *Store) MarkNoData(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = 'no_data', progress_step = '', processing_error = '', updated_at = now()
		WHERE id = $1 AND status = 'processing'`, runID)
	if err != nil {
		return eris.Wrap(err, "importer: mark no data")
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// FailRun transitions a processing run to failed with a machine-readable code
// and a human-readable message.
func (s *Store) FailRun(ctx context.Context, runID, code, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = 'failed', processing_error = $2, progress_step = '', updated_at = now()
		WHERE id = $1 AND status = 'processing'`, runID, code+": "+message)
	if err != nil {
		return eris.Wrap(err, "importer: fail run")
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// ReturnForRetry puts a processing run back in the uploaded state so a later
// claim retries it once availableAt passes. The consumed attempt is kept.
func (s *Store) ReturnForRetry(ctx context.Context, runID string, availableAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = 'uploaded', processing_available_at = $2, processing_error = $3,
			progress_step = '', updated_at = now()
		WHERE id = $1 AND status = 'processing'`, runID, availableAt, lastErr)
	if err != nil {
		return eris.Wrap(err, "importer: return for retry")
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.ImportRun, error) {
	var run model.ImportRun
	var summary []byte
	err := row.Scan(
		&run.ID, &run.TenantID, &run.CompanyID, &run.EntryLocationID,
		&run.SourceFileKey, &run.SourceFileName, &run.Status, &run.ProgressStep,
		&run.ProcessingError, &run.ProcessingAttempts, &run.ProcessingStartedAt,
		&run.ProcessingAvailableAt, &run.TotalItems, &run.AcceptedCount,
		&run.RejectedCount, &run.AmendedCount, &run.InvalidCount, &run.DuplicateCount,
		&run.CreatedBy, &run.FinalizedBy, &run.FinalizedAt, &summary,
		&run.ArtifactsPurgedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(summary) > 0 {
		run.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summary, run.Summary); err != nil {
			return nil, eris.Wrap(err, "importer: decode run summary")
		}
	}
	return &run, nil
}

func scanItem(row scanner) (*model.ImportItem, error) {
	var item model.ImportItem
	var extracted, normalized, amendments, candidates []byte
	err := row.Scan(
		&item.ID, &item.TenantID, &item.RunID, &item.Type, &item.Status,
		&item.NeedsReview, &item.Confidence, &extracted, &normalized, &amendments,
		&item.ReviewNotes, &candidates, &item.ConfirmCreateNew, &item.SelectedDuplicateID,
		&item.ParentItemID, &item.CreatedLocationID, &item.CreatedProjectID,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.ExtractedData = json.RawMessage(extracted)
	item.NormalizedData = json.RawMessage(normalized)
	if len(amendments) > 0 {
		item.UserAmendments = json.RawMessage(amendments)
	}
	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &item.DuplicateCandidates); err != nil {
			return nil, eris.Wrap(err, "importer: decode duplicate candidates")
		}
	}
	return &item, nil
}

func marshalCandidates(candidates []model.DuplicateCandidate) ([]byte, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return nil, eris.Wrap(err, "importer: encode duplicate candidates")
	}
	return data, nil
}

func nilBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

