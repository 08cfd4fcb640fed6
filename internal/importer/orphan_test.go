package importer

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-env/wastestream/internal/model"
)

func expectOrphanRunAndLocation(mock pgxmock.PgxPoolIface, runStatus model.RunStatus) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM import_runs WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("t1", "run-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(runStatus))
	if runStatus != model.RunStatusCompleted {
		mock.ExpectRollback()
		return
	}
	mock.ExpectQuery(`SELECT (.+) FROM locations WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs("t1", "loc-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "company_id", "name", "normalized_name",
			"address", "city", "state", "postal_code", "created_at",
		}).AddRow("loc-1", "t1", "c1", "Plant A", "plant a", "", "", "", "", time.Now()))
}

func TestOrphanImporter_Import(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	item := testItem("item-1", "run-1", model.ItemTypeProject, model.ItemStatusAccepted)

	expectOrphanRunAndLocation(mock, model.RunStatusCompleted)
	mock.ExpectQuery(`FROM import_items WHERE tenant_id = \$1 AND run_id = \$2 AND id = \$3 FOR UPDATE`).
		WithArgs("t1", "run-1", "item-1").
		WillReturnRows(itemRows(item))
	mock.ExpectExec(`INSERT INTO projects`).
		WithArgs(pgxmock.AnyArg(), "t1", "loc-1", "Cardboard OCC", "recycling", "", 0, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE import_items SET created_project_id`).
		WithArgs("item-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	created, err := NewOrphanImporter(mock).Import(context.Background(), "t1", "run-1", "loc-1", []string{"item-1"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.NotEmpty(t, created["item-1"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrphanImporter_ConflictWhenRunNotCompleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectOrphanRunAndLocation(mock, model.RunStatusReviewReady)

	_, err = NewOrphanImporter(mock).Import(context.Background(), "t1", "run-1", "loc-1", []string{"item-1"})
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrphanImporter_RejectsMaterializedItem(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	item := testItem("item-1", "run-1", model.ItemTypeProject, model.ItemStatusAccepted)
	existing := "proj-1"
	item.CreatedProjectID = &existing

	expectOrphanRunAndLocation(mock, model.RunStatusCompleted)
	mock.ExpectQuery(`FROM import_items WHERE tenant_id = \$1 AND run_id = \$2 AND id = \$3 FOR UPDATE`).
		WithArgs("t1", "run-1", "item-1").
		WillReturnRows(itemRows(item))
	mock.ExpectRollback()

	_, err = NewOrphanImporter(mock).Import(context.Background(), "t1", "run-1", "loc-1", []string{"item-1"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrphanImporter_EmptyItemList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewOrphanImporter(mock).Import(context.Background(), "t1", "run-1", "loc-1", nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestOrphanImporter_UnknownLocation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM import_runs WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("t1", "run-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(model.RunStatusCompleted))
	mock.ExpectQuery(`SELECT (.+) FROM locations WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs("t1", "loc-404").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "company_id", "name", "normalized_name",
			"address", "city", "state", "postal_code", "created_at",
		}))
	mock.ExpectRollback()

	_, err = NewOrphanImporter(mock).Import(context.Background(), "t1", "run-1", "loc-404", []string{"item-1"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
