package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "attest/pkg/platform/audit"
	txcontext "attest/pkg/platform/tx"
)

func TestAppendUsesCallerTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), "proof", "5", "ProofLocked", "compliance", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), tx)

	store := New(db)
	event := audit.Event{Action: audit.EventProofLocked, ProofID: 5, Actor: "0xabc"}.Normalize(time.Now())
	require.NoError(t, store.Append(ctx, event))
	require.NoError(t, tx.Rollback())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBatch(t *testing.T) {
	payload, err := audit.Marshal(audit.Event{Action: audit.EventProofMinted, ProofID: 1}.Normalize(time.Now()))
	require.NoError(t, err)

	t.Run("marks rows published after a successful publish", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT seq, aggregate_id, event_type, payload FROM outbox").
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"seq", "aggregate_id", "event_type", "payload"}).
				AddRow(int64(1), "1", "ProofMinted", payload).
				AddRow(int64(2), "1", "ProofLocked", payload))
		mock.ExpectExec("UPDATE outbox SET published_at").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		var got []Entry
		n, err := New(db).ProcessBatch(context.Background(), 10, func(_ context.Context, entries []Entry) error {
			got = entries
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		require.Len(t, got, 2)
		assert.Equal(t, "ProofLocked", got[1].EventType)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("leaves rows unpublished when publish fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT seq").
			WillReturnRows(sqlmock.NewRows([]string{"seq", "aggregate_id", "event_type", "payload"}).
				AddRow(int64(1), "1", "ProofMinted", payload))
		mock.ExpectRollback()

		n, err := New(db).ProcessBatch(context.Background(), 10, func(context.Context, []Entry) error {
			return errors.New("broker down")
		})
		require.Error(t, err)
		assert.Zero(t, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty outbox commits nothing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT seq").WillReturnRows(sqlmock.NewRows([]string{"seq", "aggregate_id", "event_type", "payload"}))
		mock.ExpectRollback()

		n, err := New(db).ProcessBatch(context.Background(), 10, func(context.Context, []Entry) error {
			t.Fatal("publish must not be called for an empty batch")
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecentByProofLimitsInSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	locked, err := audit.Marshal(audit.Event{Action: audit.EventProofLocked, ProofID: 3}.Normalize(now))
	require.NoError(t, err)
	revoked, err := audit.Marshal(audit.Event{Action: audit.EventProofRevoked, ProofID: 3}.Normalize(now))
	require.NoError(t, err)

	mock.ExpectQuery(`ORDER BY seq DESC\s+LIMIT \$2`).
		WithArgs("3", 2).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).
			AddRow(locked).
			AddRow(revoked))

	events, err := New(db).RecentByProof(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventProofRevoked, events[0].Action, "oldest first")
	assert.Equal(t, audit.EventProofLocked, events[1].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}
