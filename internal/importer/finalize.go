package importer

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-env/wastestream/internal/db"
	"github.com/veridian-env/wastestream/internal/entities"
	"github.com/veridian-env/wastestream/internal/model"
)

// Finalizer materializes a reviewed run into production entities.
//
// Finalize is two-phase: a small committed transaction flips the run to
// finalizing so reviews are fenced off, then one big transaction creates every
// entity and completes the run. A crash between the phases leaves the run in
// finalizing, where a retried Finalize picks it up; the per-item
// created_*_id guard makes the retry skip anything already materialized.
type Finalizer struct {
	pool db.Pool
}

func NewFinalizer(pool db.Pool) *Finalizer {
	return &Finalizer{pool: pool}
}

// Finalize completes a run, creating locations and projects from its accepted
// and amended items. Calling it on a completed run returns the stored summary
// without side effects.
func (f *Finalizer) Finalize(ctx context.Context, tenantID, runID, finalizedBy string) (*model.RunSummary, error) {
	summary, done, err := f.markFinalizing(ctx, tenantID, runID, finalizedBy)
	if err != nil {
		return nil, err
	}
	if done {
		return summary, nil
	}
	return f.materialize(ctx, tenantID, runID)
}

// markFinalizing is phase one: fence the run. Returns (summary, true, nil)
// when the run is already completed.
func (f *Finalizer) markFinalizing(ctx context.Context, tenantID, runID, finalizedBy string) (*model.RunSummary, bool, error) {
	tag, err := f.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = 'finalizing', finalized_by = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status IN ('review_ready', 'finalizing')`,
		tenantID, runID, finalizedBy)
	if err != nil {
		return nil, false, eris.Wrap(err, "importer: mark finalizing")
	}
	if tag.RowsAffected() > 0 {
		return nil, false, nil
	}

	run, err := NewStore(f.pool).GetRun(ctx, tenantID, runID)
	if err != nil {
		return nil, false, err
	}
	if run.Status == model.RunStatusCompleted {
		return run.Summary, true, nil
	}
	return nil, false, ErrConflict
}

// materialize is phase two: one transaction that creates entities for every
// accepted or amended item and completes the run.
func (f *Finalizer) materialize(ctx context.Context, tenantID, runID string) (*model.RunSummary, error) {
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "importer: begin finalize")
	}
	defer tx.Rollback(ctx)

	run, err := scanRun(tx.QueryRow(ctx,
		`SELECT `+runColumns+` FROM import_runs WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, runID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: lock run for finalize")
	}
	if run.Status == model.RunStatusCompleted {
		return run.Summary, nil
	}
	if run.Status != model.RunStatusFinalizing {
		return nil, ErrConflict
	}

	items, err := lockRunItems(ctx, tx, runID)
	if err != nil {
		return nil, err
	}

	locationByItem := make(map[string]string)

	// Locations first so project items can inherit their parent's new id.
	for i := range items {
		item := &items[i]
		if item.Type != model.ItemTypeLocation {
			continue
		}
		if item.CreatedLocationID != nil {
			locationByItem[item.ID] = *item.CreatedLocationID
			continue
		}
		if !reviewApproved(item.Status) {
			continue
		}

		if linkID, ok := duplicateLink(item); ok {
			if err := setItemEntity(ctx, tx, item.ID, "created_location_id", linkID); err != nil {
				return nil, err
			}
			locationByItem[item.ID] = linkID
			continue
		}

		data, err := model.DecodeLocationData(item.EffectiveData())
		if err != nil {
			return nil, eris.Wrapf(err, "importer: finalize item %s", item.ID)
		}
		loc := &entities.Location{
			TenantID:   tenantID,
			CompanyID:  run.CompanyID,
			Name:       data.Name,
			Address:    data.Address,
			City:       data.City,
			State:      data.State,
			PostalCode: data.PostalCode,
		}
		if err := entities.InsertLocation(ctx, tx, loc); err != nil {
			return nil, err
		}
		if err := setItemEntity(ctx, tx, item.ID, "created_location_id", loc.ID); err != nil {
			return nil, err
		}
		locationByItem[item.ID] = loc.ID
	}

	for i := range items {
		item := &items[i]
		if item.Type != model.ItemTypeProject || item.CreatedProjectID != nil || !reviewApproved(item.Status) {
			continue
		}

		if linkID, ok := duplicateLink(item); ok {
			if err := setItemEntity(ctx, tx, item.ID, "created_project_id", linkID); err != nil {
				return nil, err
			}
			continue
		}

		locationID := projectTargetLocation(item, locationByItem, run.EntryLocationID)
		if locationID == "" {
			continue
		}

		if _, err := materializeProject(ctx, tx, tenantID, locationID, item); err != nil {
			return nil, err
		}
	}

	if err := refreshRunCounters(ctx, tx, runID); err != nil {
		return nil, err
	}

	// The summary is derived from final item state rather than tallied along
	// the way, so a finalize retried after a partial materialization still
	// reports the whole run.
	summary, err := summarizeItems(ctx, tx, runID)
	if err != nil {
		return nil, err
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, eris.Wrap(err, "importer: encode summary")
	}
	tag, err := tx.Exec(ctx, `
		UPDATE import_runs
		SET status = 'completed', finalized_at = now(), summary_data = $2, updated_at = now()
		WHERE id = $1 AND status = 'finalizing'`, runID, summaryJSON)
	if err != nil {
		return nil, eris.Wrap(err, "importer: complete run")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "importer: commit finalize")
	}

	zap.L().Info("run finalized",
		zap.String("run_id", runID),
		zap.Int("locations_created", summary.LocationsCreated),
		zap.Int("projects_created", summary.ProjectsCreated),
		zap.Int("duplicates_resolved", summary.DuplicatesResolved),
		zap.Int("orphaned_items", len(summary.OrphanedProjectItems)),
	)
	return summary, nil
}

// summarizeItems computes the run summary from persisted item state.
func summarizeItems(ctx context.Context, q db.Querier, runID string) (*model.RunSummary, error) {
	summary := &model.RunSummary{}
	err := q.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE item_type = 'location' AND created_location_id IS NOT NULL
				AND (confirm_create_new OR selected_duplicate_id IS NULL)),
			count(*) FILTER (WHERE item_type = 'project' AND created_project_id IS NOT NULL
				AND (confirm_create_new OR selected_duplicate_id IS NULL)),
			count(*) FILTER (WHERE status = 'rejected'),
			count(*) FILTER (WHERE status = 'invalid'),
			count(*) FILTER (WHERE selected_duplicate_id IS NOT NULL AND NOT confirm_create_new
				AND (created_location_id IS NOT NULL OR created_project_id IS NOT NULL))
		FROM import_items WHERE run_id = $1`, runID).
		Scan(&summary.LocationsCreated, &summary.ProjectsCreated, &summary.Rejected,
			&summary.Invalid, &summary.DuplicatesResolved)
	if err != nil {
		return nil, eris.Wrap(err, "importer: summarize items")
	}

	rows, err := q.Query(ctx, `
		SELECT id FROM import_items
		WHERE run_id = $1 AND item_type = 'project'
			AND status IN ('accepted', 'amended') AND created_project_id IS NULL
		ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "importer: list orphans")
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "importer: scan orphan")
		}
		summary.OrphanedProjectItems = append(summary.OrphanedProjectItems, id)
	}
	return summary, rows.Err()
}

func lockRunItems(ctx context.Context, tx pgx.Tx, runID string) ([]model.ImportItem, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+itemColumns+` FROM import_items WHERE run_id = $1 ORDER BY created_at, id FOR UPDATE`,
		runID)
	if err != nil {
		return nil, eris.Wrap(err, "importer: lock items")
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

// reviewApproved reports whether an item's review outcome permits
// materialization.
func reviewApproved(s model.ItemStatus) bool {
	return s == model.ItemStatusAccepted || s == model.ItemStatusAmended
}

// duplicateLink returns the existing entity id the item should link to
// instead of creating a new one.
func duplicateLink(item *model.ImportItem) (string, bool) {
	if !item.ConfirmCreateNew && item.SelectedDuplicateID != nil {
		return *item.SelectedDuplicateID, true
	}
	return "", false
}

// projectTargetLocation resolves where a project item materializes: its
// parent location item's entity, else the run's entry location, else nowhere.
func projectTargetLocation(item *model.ImportItem, locationByItem map[string]string, entryLocationID *string) string {
	if item.ParentItemID != nil {
		if id, ok := locationByItem[*item.ParentItemID]; ok {
			return id
		}
		return ""
	}
	if entryLocationID != nil {
		return *entryLocationID
	}
	return ""
}

func materializeProject(ctx context.Context, q db.Querier, tenantID, locationID string, item *model.ImportItem) (string, error) {
	data, err := model.DecodeProjectData(item.EffectiveData())
	if err != nil {
		return "", eris.Wrapf(err, "importer: finalize item %s", item.ID)
	}
	p := &entities.Project{
		TenantID:         tenantID,
		LocationID:       locationID,
		Name:             data.Name,
		WasteCategory:    data.WasteCategory,
		HaulerName:       data.HaulerName,
		ContainerCount:   data.ContainerCount,
		ServiceFrequency: data.ServiceFrequency,
	}
	if err := entities.InsertProject(ctx, q, p); err != nil {
		return "", err
	}
	if err := setItemEntity(ctx, q, item.ID, "created_project_id", p.ID); err != nil {
		return "", err
	}
	return p.ID, nil
}

func setItemEntity(ctx context.Context, q db.Querier, itemID, column, entityID string) error {
	_, err := q.Exec(ctx,
		`UPDATE import_items SET `+column+` = $2, updated_at = now() WHERE id = $1`,
		itemID, entityID)
	if err != nil {
		return eris.Wrapf(err, "importer: set %s", column)
	}
	return nil
}
