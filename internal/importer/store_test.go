package importer

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-env/wastestream/internal/model"
)

func TestStore_Migrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS import_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewStore(mock).Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO import_runs`).
		WithArgs(pgxmock.AnyArg(), "t1", "c1", (*string)(nil), "t1/abc/sites.xlsx", "sites.xlsx",
			model.RunStatusUploaded, "user-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.ImportRun{
		TenantID:       "t1",
		CompanyID:      "c1",
		SourceFileKey:  "t1/abc/sites.xlsx",
		SourceFileName: "sites.xlsx",
		CreatedBy:      "user-1",
	}
	require.NoError(t, NewStore(mock).CreateRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusUploaded, run.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetRun_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM import_runs WHERE tenant_id`).
		WithArgs("t1", "missing").
		WillReturnRows(runRows())

	_, err = NewStore(mock).GetRun(context.Background(), "t1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetRun_DecodesSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := testRun("run-1", model.RunStatusCompleted)
	run.Summary = &model.RunSummary{LocationsCreated: 2, ProjectsCreated: 5}
	mock.ExpectQuery(`SELECT (.+) FROM import_runs WHERE tenant_id`).
		WithArgs("t1", "run-1").
		WillReturnRows(runRows(run))

	got, err := NewStore(mock).GetRun(context.Background(), "t1", "run-1")
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 2, got.Summary.LocationsCreated)
	assert.Equal(t, 5, got.Summary.ProjectsCreated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRuns_StatusFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM import_runs WHERE tenant_id = \$1 AND status = \$2`).
		WithArgs("t1", model.RunStatusReviewReady, 10).
		WillReturnRows(runRows(testRun("run-1", model.RunStatusReviewReady)))

	runs, err := NewStore(mock).ListRuns(context.Background(), "t1", model.RunStatusReviewReady, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertItems_CopyFrom(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"import_items"}, []string{
		"id", "tenant_id", "run_id", "item_type", "status", "needs_review", "confidence",
		"extracted_data", "normalized_data", "user_amendments", "review_notes",
		"duplicate_candidates", "confirm_create_new", "selected_duplicate_id",
		"parent_item_id", "created_location_id", "created_project_id",
	}).WillReturnResult(2)

	items := []model.ImportItem{
		*testItem("", "run-1", model.ItemTypeLocation, ""),
		*testItem("", "run-1", model.ItemTypeProject, ""),
	}
	require.NoError(t, NewStore(mock).InsertItems(context.Background(), items))
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, model.ItemStatusPendingReview, items[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertItems_EmptyIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	require.NoError(t, NewStore(mock).InsertItems(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListItems_StatusFilterAndPaging(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	item := testItem("item-1", "run-1", model.ItemTypeLocation, model.ItemStatusPendingReview)
	mock.ExpectQuery(`SELECT (.+) FROM import_items WHERE tenant_id = \$1 AND run_id = \$2 AND status = \$3`).
		WithArgs("t1", "run-1", model.ItemStatusPendingReview, 50, 100).
		WillReturnRows(itemRows(item))

	items, err := NewStore(mock).ListItems(context.Background(), "t1", "run-1", model.ItemStatusPendingReview, 50, 100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkReviewReady_ConflictWhenNotProcessing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE import_runs`).
		WithArgs("run-1", 12).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewStore(mock).MarkReviewReady(context.Background(), "run-1", 12)
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkNoData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`SET status = 'no_data'`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewStore(mock).MarkNoData(context.Background(), "run-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FailRun_JoinsCodeAndMessage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`SET status = 'failed'`).
		WithArgs("run-1", "extraction_failed: model returned garbage").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewStore(mock).FailRun(context.Background(), "run-1", model.ErrCodeExtractionFailed, "model returned garbage")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReturnForRetry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	availableAt := time.Now().Add(2 * time.Minute)
	mock.ExpectExec(`SET status = 'uploaded'`).
		WithArgs("run-1", availableAt, "importer: extract: timeout").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewStore(mock).ReturnForRetry(context.Background(), "run-1", availableAt, "importer: extract: timeout")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
