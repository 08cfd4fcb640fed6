package importer

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/veridian-env/wastestream/internal/db"
	"github.com/veridian-env/wastestream/internal/model"
)

// ReviewPatch carries the optional reviewer inputs shared by review verbs.
type ReviewPatch struct {
	Notes string
	// ConfirmCreateNew, when set, records that the reviewer wants a new
	// entity created despite duplicate candidates.
	ConfirmCreateNew *bool
	// SelectedDuplicateID, when set, must be one of the item's duplicate
	// candidates; finalize links the item to it instead of creating.
	SelectedDuplicateID *string
}

// ReviewEngine applies reviewer decisions to items of a review_ready run.
// Every verb runs in one transaction holding the run row lock, so reviews
// serialize against finalize: once finalize flips the run, every in-flight
// review fails with ErrConflict.
type ReviewEngine struct {
	pool db.Pool
}

func NewReviewEngine(pool db.Pool) *ReviewEngine {
	return &ReviewEngine{pool: pool}
}

// Accept marks an item accepted as extracted (or as previously amended).
// Only pending, accepted, or amended items can be accepted: a rejected or
// invalid item must be Reset (or re-amended with a valid payload) first.
// Idempotent: accepting an accepted item reapplies the patch.
func (e *ReviewEngine) Accept(ctx context.Context, tenantID, itemID string, patch ReviewPatch) (*model.ImportItem, error) {
	return e.apply(ctx, tenantID, itemID, func(ctx context.Context, tx pgx.Tx, item *model.ImportItem) error {
		switch item.Status {
		case model.ItemStatusPendingReview, model.ItemStatusAccepted, model.ItemStatusAmended:
		default:
			return ErrConflict
		}
		if err := validatePatch(item, patch); err != nil {
			return err
		}
		status := model.ItemStatusAccepted
		if len(item.UserAmendments) > 0 {
			status = model.ItemStatusAmended
		}
		return updateItemDecision(ctx, tx, item, status, item.UserAmendments, patch)
	})
}

// Amend replaces the item's payload with the reviewer's corrected version and
// marks it amended. The amendment must match the item type's schema exactly;
// a shape mismatch returns a ValidationError and changes nothing.
func (e *ReviewEngine) Amend(ctx context.Context, tenantID, itemID string, amendments json.RawMessage, patch ReviewPatch) (*model.ImportItem, error) {
	return e.apply(ctx, tenantID, itemID, func(ctx context.Context, tx pgx.Tx, item *model.ImportItem) error {
		if err := model.ValidatePayload(item.Type, amendments); err != nil {
			return &ValidationError{Reason: eris.Cause(err).Error()}
		}
		if err := validatePatch(item, patch); err != nil {
			return err
		}
		return updateItemDecision(ctx, tx, item, model.ItemStatusAmended, amendments, patch)
	})
}

// Reject marks an item rejected. Rejecting a location cascades: its
// non-rejected child project items become invalid, since a project cannot
// materialize without its parent.
func (e *ReviewEngine) Reject(ctx context.Context, tenantID, itemID string, patch ReviewPatch) (*model.ImportItem, error) {
	return e.apply(ctx, tenantID, itemID, func(ctx context.Context, tx pgx.Tx, item *model.ImportItem) error {
		if err := updateItemDecision(ctx, tx, item, model.ItemStatusRejected, item.UserAmendments, patch); err != nil {
			return err
		}
		if item.Type != model.ItemTypeLocation {
			return nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE import_items
			SET status = 'invalid', review_notes = 'parent location rejected', updated_at = now()
			WHERE parent_item_id = $1 AND status <> 'rejected'`, item.ID)
		if err != nil {
			return eris.Wrap(err, "importer: cascade reject")
		}
		return nil
	})
}

// Reset returns an item to pending_review, discarding the reviewer's decision,
// amendments, and duplicate selection. The item goes back onto the review
// queue, so needs_review is raised again.
func (e *ReviewEngine) Reset(ctx context.Context, tenantID, itemID string) (*model.ImportItem, error) {
	return e.apply(ctx, tenantID, itemID, func(ctx context.Context, tx pgx.Tx, item *model.ImportItem) error {
		_, err := tx.Exec(ctx, `
			UPDATE import_items
			SET status = 'pending_review', user_amendments = NULL, review_notes = '',
				confirm_create_new = false, selected_duplicate_id = NULL,
				needs_review = true, updated_at = now()
			WHERE id = $1`, item.ID)
		if err != nil {
			return eris.Wrap(err, "importer: reset item")
		}
		return nil
	})
}

// apply wraps one review decision: lock the run in review_ready, load the
// item, run the verb, refresh run counters, commit, and return the item as
// persisted.
func (e *ReviewEngine) apply(ctx context.Context, tenantID, itemID string, verb func(context.Context, pgx.Tx, *model.ImportItem) error) (*model.ImportItem, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "importer: begin review")
	}
	defer tx.Rollback(ctx)

	item, err := lockItemRun(ctx, tx, tenantID, itemID)
	if err != nil {
		return nil, err
	}

	if err := verb(ctx, tx, item); err != nil {
		return nil, err
	}

	if err := refreshRunCounters(ctx, tx, item.RunID); err != nil {
		return nil, err
	}

	updated, err := scanItem(tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM import_items WHERE id = $1`, item.ID))
	if err != nil {
		return nil, eris.Wrap(err, "importer: reload item")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "importer: commit review")
	}
	return updated, nil
}

// lockItemRun takes the run row lock and then the item row lock, enforcing
// that the run is still reviewable. Locks are acquired run-first in the same
// order the finalizer uses, so a review racing a finalize blocks instead of
// deadlocking. run_id never changes, so the unlocked lookup is safe.
func lockItemRun(ctx context.Context, tx pgx.Tx, tenantID, itemID string) (*model.ImportItem, error) {
	var runID string
	err := tx.QueryRow(ctx,
		`SELECT run_id FROM import_items WHERE tenant_id = $1 AND id = $2`,
		tenantID, itemID).Scan(&runID)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: look up item run")
	}

	var status model.RunStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM import_runs WHERE id = $1 FOR UPDATE`, runID).Scan(&status)
	if err != nil {
		return nil, eris.Wrap(err, "importer: lock run")
	}
	if status != model.RunStatusReviewReady {
		return nil, ErrConflict
	}

	item, err := scanItem(tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM import_items WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, itemID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: lock item")
	}
	return item, nil
}

// validatePatch checks that a selected duplicate is actually one of the
// item's candidates.
func validatePatch(item *model.ImportItem, patch ReviewPatch) error {
	if patch.SelectedDuplicateID == nil {
		return nil
	}
	for _, cand := range item.DuplicateCandidates {
		if cand.EntityID == *patch.SelectedDuplicateID {
			return nil
		}
	}
	return &ValidationError{Field: "selected_duplicate_id", Reason: "not a duplicate candidate of this item"}
}

func updateItemDecision(ctx context.Context, tx pgx.Tx, item *model.ImportItem, status model.ItemStatus, amendments json.RawMessage, patch ReviewPatch) error {
	confirm := item.ConfirmCreateNew
	if patch.ConfirmCreateNew != nil {
		confirm = *patch.ConfirmCreateNew
	}
	selected := item.SelectedDuplicateID
	if patch.SelectedDuplicateID != nil {
		selected = patch.SelectedDuplicateID
	}
	notes := item.ReviewNotes
	if patch.Notes != "" {
		notes = patch.Notes
	}

	// A recorded decision resolves the review need.
	_, err := tx.Exec(ctx, `
		UPDATE import_items
		SET status = $2, user_amendments = $3, review_notes = $4,
			confirm_create_new = $5, selected_duplicate_id = $6,
			needs_review = false, updated_at = now()
		WHERE id = $1`,
		item.ID, status, nilBytes(amendments), notes, confirm, selected)
	if err != nil {
		return eris.Wrap(err, "importer: update item decision")
	}
	return nil
}

// refreshRunCounters recomputes the run's per-status counters from its items,
// so the counts always satisfy the identity against total_items. An approved
// item linked to an existing entity counts as a duplicate, not as accepted
// or amended.
func refreshRunCounters(ctx context.Context, q db.Querier, runID string) error {
	_, err := q.Exec(ctx, `
		UPDATE import_runs r SET
			accepted_count = agg.accepted,
			amended_count = agg.amended,
			rejected_count = agg.rejected,
			invalid_count = agg.invalid,
			duplicate_count = agg.duplicates,
			updated_at = now()
		FROM (
			SELECT
				count(*) FILTER (WHERE status = 'accepted'
					AND (confirm_create_new OR selected_duplicate_id IS NULL)) AS accepted,
				count(*) FILTER (WHERE status = 'amended'
					AND (confirm_create_new OR selected_duplicate_id IS NULL)) AS amended,
				count(*) FILTER (WHERE status = 'rejected') AS rejected,
				count(*) FILTER (WHERE status = 'invalid') AS invalid,
				count(*) FILTER (WHERE selected_duplicate_id IS NOT NULL
					AND NOT confirm_create_new
					AND status IN ('accepted', 'amended')) AS duplicates
			FROM import_items WHERE run_id = $1
		) agg
		WHERE r.id = $1`, runID)
	if err != nil {
		return eris.Wrap(err, "importer: refresh run counters")
	}
	return nil
}
