package recorder

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockRecorder(t *testing.T) (*SQLiteRecorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	r, err := NewSQLiteRecorderFromDB(db, nil)
	require.NoError(t, err)
	return r, mock
}

func TestRecordEvent(t *testing.T) {
	r, mock := newMockRecorder(t)
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vault_events")).
		WithArgs("evt-1", ts.Unix(), "USDC", "REDEEM", "0xabc", 545, 500, 1_090_000, 1, "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, r.RecordEvent(&VaultEvent{
		ID: "evt-1", Timestamp: ts, Asset: "USDC", Type: EventRedeem, Actor: "0xabc",
		Amount: 545, Shares: 500, Rate: 1_090_000, RequestID: 1,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRateChange(t *testing.T) {
	r, mock := newMockRecorder(t)
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rate_changes")).
		WithArgs(ts.Unix(), "USDC", 1_000_000, 1_000_000, 1_090_000, 100, 10, true, 900).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, r.RecordRateChange(&RateChange{
		Timestamp: ts, Asset: "USDC", OldRate: 1_000_000, NewRate: 1_000_000, Proposed: 1_090_000,
		GrossYield: 100, Fee: 10, Deferred: true, IncreaseBps: 900,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateFailureIsReported(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE").WillReturnError(sqlmock.ErrCancelled)
	_, err = NewSQLiteRecorderFromDB(db, nil)
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	r, mock := newMockRecorder(t)
	mock.ExpectClose()
	require.NoError(t, r.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
