package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestTableExists(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("employees").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.TableExists(context.Background(), "employees")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableRowCountReturnsZeroWhenTableMissing(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("events").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	count, err := s.TableRowCount(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteYearExecutesUnderRetry(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec("DELETE FROM employees").
		WithArgs(2025).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := s.DeleteYear(context.Background(), "employees", 2025)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteManyRunsStatementsInOrder(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec("DELETE FROM a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM b").WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.ExecuteMany(context.Background(),
		[]string{"DELETE FROM a WHERE id = $1", "DELETE FROM b WHERE id = $1"},
		[][]any{{1}, {2}},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteManyRejectsMismatchedLengths(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.ExecuteMany(context.Background(), []string{"DELETE FROM a"}, [][]any{})
	assert.Error(t, err)
}

func TestInsertEventsSkipsEmptyBatch(t *testing.T) {
	s, mock := newTestStore(t)
	err := s.InsertEvents(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventsInsertsEachRow(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))

	events := []domain.Event{
		{
			EventID:          "evt-1",
			ScenarioID:       "SCN-1",
			PlanDesignID:     "PD-1",
			EmployeeID:       "EMP-001",
			EventType:        domain.EventHire,
			EffectiveDate:    time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			SimulationYear:   2025,
			EventSequence:    1,
			Payload:          map[string]interface{}{"level": 2},
			EventProbability: 0.42,
			CreatedAt:        time.Now(),
			GenerationMethod: domain.GeneratedBySQL,
		},
	}
	require.NoError(t, s.InsertEvents(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSnapshotsRejectsInvalidSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	bad := []domain.WorkforceSnapshot{{
		EmployeeID:                     "EMP-001",
		ProratedAnnualCompensation:     100,
		FullYearEquivalentCompensation: 50,
		EmploymentStatus:               domain.StatusActive,
	}}
	err := s.InsertSnapshots(context.Background(), bad)
	assert.Error(t, err)
}

func TestActiveHeadcountUsesCount(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(2025, "active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := s.ActiveHeadcount(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
