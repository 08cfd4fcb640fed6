package importer

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-env/wastestream/internal/db"
	"github.com/veridian-env/wastestream/internal/entities"
	"github.com/veridian-env/wastestream/internal/model"
)

// OrphanImporter materializes project items that finalize could not place:
// approved projects whose parent location was rejected, never extracted, or
// otherwise unresolvable. The operator names an explicit existing location.
type OrphanImporter struct {
	pool db.Pool
}

func NewOrphanImporter(pool db.Pool) *OrphanImporter {
	return &OrphanImporter{pool: pool}
}

// Import creates projects for the given orphaned items under locationID.
// Only approved, not-yet-materialized project items qualify; anything else in
// itemIDs is a ValidationError and nothing is created. Returns the created
// project ids keyed by item id.
func (o *OrphanImporter) Import(ctx context.Context, tenantID, runID, locationID string, itemIDs []string) (map[string]string, error) {
	if len(itemIDs) == 0 {
		return nil, &ValidationError{Field: "item_ids", Reason: "at least one item is required"}
	}

	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "importer: begin orphan import")
	}
	defer tx.Rollback(ctx)

	var status model.RunStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM import_runs WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, runID).Scan(&status)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: lock run for orphan import")
	}
	if status != model.RunStatusCompleted {
		return nil, ErrConflict
	}

	ok, err := entities.LocationExists(ctx, tx, tenantID, locationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ValidationError{Field: "location_id", Reason: "location does not exist for tenant"}
	}

	created := make(map[string]string, len(itemIDs))
	for _, itemID := range itemIDs {
		item, err := scanItem(tx.QueryRow(ctx,
			`SELECT `+itemColumns+` FROM import_items WHERE tenant_id = $1 AND run_id = $2 AND id = $3 FOR UPDATE`,
			tenantID, runID, itemID))
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, eris.Wrap(err, "importer: lock orphan item")
		}

		if item.Type != model.ItemTypeProject {
			return nil, &ValidationError{Field: "item_ids", Reason: "item " + itemID + " is not a project"}
		}
		if item.CreatedProjectID != nil {
			return nil, &ValidationError{Field: "item_ids", Reason: "item " + itemID + " is already materialized"}
		}
		if !reviewApproved(item.Status) {
			return nil, &ValidationError{Field: "item_ids", Reason: "item " + itemID + " was not approved in review"}
		}

		projectID, err := materializeProject(ctx, tx, tenantID, locationID, item)
		if err != nil {
			return nil, err
		}
		created[itemID] = projectID
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "importer: commit orphan import")
	}

	zap.L().Info("orphaned projects imported",
		zap.String("run_id", runID),
		zap.String("location_id", locationID),
		zap.Int("count", len(created)),
	)
	return created, nil
}
