package importer

import (
	"encoding/json"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/veridian-env/wastestream/internal/model"
)

var runTestColumns = []string{
	"id", "tenant_id", "company_id", "entry_location_id", "source_file_key", "source_file_name",
	"status", "progress_step", "processing_error", "processing_attempts", "processing_started_at",
	"processing_available_at", "total_items", "accepted_count", "rejected_count", "amended_count",
	"invalid_count", "duplicate_count", "created_by", "finalized_by", "finalized_at", "summary_data",
	"artifacts_purged_at", "created_at", "updated_at",
}

var itemTestColumns = []string{
	"id", "tenant_id", "run_id", "item_type", "status", "needs_review", "confidence",
	"extracted_data", "normalized_data", "user_amendments", "review_notes", "duplicate_candidates",
	"confirm_create_new", "selected_duplicate_id", "parent_item_id", "created_location_id",
	"created_project_id", "created_at", "updated_at",
}

func testRun(id string, status model.RunStatus) *model.ImportRun {
	return &model.ImportRun{
		ID:                    id,
		TenantID:              "t1",
		CompanyID:             "c1",
		SourceFileKey:         "t1/" + id + "/sites.xlsx",
		SourceFileName:        "sites.xlsx",
		Status:                status,
		ProcessingAttempts:    1,
		ProcessingAvailableAt: time.Now(),
		CreatedBy:             "user-1",
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}
}

func addRunRow(rows *pgxmock.Rows, run *model.ImportRun) *pgxmock.Rows {
	var summary []byte
	if run.Summary != nil {
		summary, _ = json.Marshal(run.Summary)
	}
	return rows.AddRow(
		run.ID, run.TenantID, run.CompanyID, run.EntryLocationID,
		run.SourceFileKey, run.SourceFileName, run.Status, run.ProgressStep,
		run.ProcessingError, run.ProcessingAttempts, run.ProcessingStartedAt,
		run.ProcessingAvailableAt, run.TotalItems, run.AcceptedCount,
		run.RejectedCount, run.AmendedCount, run.InvalidCount, run.DuplicateCount,
		run.CreatedBy, run.FinalizedBy, run.FinalizedAt, summary,
		run.ArtifactsPurgedAt, run.CreatedAt, run.UpdatedAt,
	)
}

func runRows(runs ...*model.ImportRun) *pgxmock.Rows {
	rows := pgxmock.NewRows(runTestColumns)
	for _, run := range runs {
		rows = addRunRow(rows, run)
	}
	return rows
}

func testItem(id, runID string, t model.ItemType, status model.ItemStatus) *model.ImportItem {
	payload := json.RawMessage(`{"name":"Plant A"}`)
	if t == model.ItemTypeProject {
		payload = json.RawMessage(`{"name":"Cardboard OCC","waste_category":"recycling"}`)
	}
	return &model.ImportItem{
		ID:             id,
		TenantID:       "t1",
		RunID:          runID,
		Type:           t,
		Status:         status,
		ExtractedData:  payload,
		NormalizedData: payload,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func addItemRow(rows *pgxmock.Rows, item *model.ImportItem) *pgxmock.Rows {
	var candidates []byte
	if len(item.DuplicateCandidates) > 0 {
		candidates, _ = json.Marshal(item.DuplicateCandidates)
	}
	var amendments []byte
	if len(item.UserAmendments) > 0 {
		amendments = []byte(item.UserAmendments)
	}
	return rows.AddRow(
		item.ID, item.TenantID, item.RunID, item.Type, item.Status,
		item.NeedsReview, item.Confidence, []byte(item.ExtractedData),
		[]byte(item.NormalizedData), amendments, item.ReviewNotes, candidates,
		item.ConfirmCreateNew, item.SelectedDuplicateID, item.ParentItemID,
		item.CreatedLocationID, item.CreatedProjectID, item.CreatedAt, item.UpdatedAt,
	)
}

func itemRows(items ...*model.ImportItem) *pgxmock.Rows {
	rows := pgxmock.NewRows(itemTestColumns)
	for _, item := range items {
		rows = addItemRow(rows, item)
	}
	return rows
}
