package ownership

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

func TestPostgresLedger(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	t.Run("mint inserts a token row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO proof_tokens").
			WithArgs(int64(3), "holder-a", now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewPostgresLedger(db).Mint(ctx, 3, "holder-a"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner of a missing token", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT holder FROM proof_tokens").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"holder"}))

		_, err = NewPostgresLedger(db).OwnerOf(ctx, 3)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("transfer by a non-holder", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE proof_tokens SET holder").
			WithArgs(int64(3), "intruder", "holder-b", now).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT holder FROM proof_tokens").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"holder"}).AddRow("holder-a"))

		err = NewPostgresLedger(db).Transfer(ctx, 3, id.Identity("intruder"), id.Identity("holder-b"))
		assert.ErrorIs(t, err, ErrNotHolder)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
