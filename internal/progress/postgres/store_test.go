package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return mock, s
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, s := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS provider_progress").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUpserts(t *testing.T) {
	t.Parallel()

	mock, s := newMock(t)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO provider_progress").
		WithArgs("Codeforces", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), "Codeforces", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveError(t *testing.T) {
	t.Parallel()

	mock, s := newMock(t)
	mock.ExpectExec("INSERT INTO provider_progress").
		WillReturnError(errors.New("connection reset"))

	err := s.Save(context.Background(), "Dummy", time.Now())
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	mock, s := newMock(t)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT provider, last_synced_at FROM provider_progress").
		WillReturnRows(pgxmock.NewRows([]string{"provider", "last_synced_at"}).
			AddRow("Codeforces", at).
			AddRow("Dummy", at.Add(time.Hour)))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]time.Time{"Codeforces": at, "Dummy": at.Add(time.Hour)}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "progress; DROP TABLE x")
	require.Error(t, err)
	_, err = NewWithPool(nil, "")
	require.Error(t, err)
}
