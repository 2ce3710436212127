// File: internal/audit/postgres_test.go
package audit

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockedPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fix_attempts").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store, err := NewPostgresStore(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStoreAppend(t *testing.T) {
	t.Parallel()
	store, mock := newMockedPostgresStore(t)
	defer mock.Close()

	attempt := sampleAttempt("run-1", 1)
	mock.ExpectExec("INSERT INTO fix_attempts").
		WithArgs(attempt.RunID, attempt.AttemptNumber, attempt.Timestamp.UTC(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Append(context.Background(), attempt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreTrace(t *testing.T) {
	t.Parallel()
	store, mock := newMockedPostgresStore(t)
	defer mock.Close()

	first, err := json.Marshal(sampleAttempt("run-1", 1))
	require.NoError(t, err)
	second, err := json.Marshal(sampleAttempt("run-1", 2))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM fix_attempts").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(first).AddRow(second))

	trail, err := store.Trace(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, 1, trail[0].AttemptNumber)
	assert.Equal(t, 2, trail[1].AttemptNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorePingFailure(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(assert.AnError)

	_, err = NewPostgresStore(context.Background(), mock, zap.NewNop())
	assert.Error(t, err)
}
