package ownership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
	txcontext "attest/pkg/platform/tx"
	"attest/pkg/requestcontext"
)

// PostgresLedger stores tokens in proof_tokens. Mint joins the registry
// transaction from ctx so the token commits with the proof record.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Mint(ctx context.Context, proofID id.ProofID, to id.Identity) error {
	_, err := txcontext.Use(ctx, l.db).ExecContext(ctx,
		`INSERT INTO proof_tokens (proof_id, holder, updated_at) VALUES ($1, $2, $3)`,
		int64(proofID), to.String(), requestcontext.Now(ctx),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTokenExists
		}
		return fmt.Errorf("insert proof token: %w", err)
	}
	return nil
}

func (l *PostgresLedger) OwnerOf(ctx context.Context, proofID id.ProofID) (id.Identity, error) {
	var holder string
	err := txcontext.Use(ctx, l.db).QueryRowContext(ctx,
		`SELECT holder FROM proof_tokens WHERE proof_id = $1`, int64(proofID),
	).Scan(&holder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("read proof token: %w", err)
	}
	return id.Identity(holder), nil
}

// Transfer moves the token only if from still holds it.
func (l *PostgresLedger) Transfer(ctx context.Context, proofID id.ProofID, from, to id.Identity) error {
	q := txcontext.Use(ctx, l.db)
	res, err := q.ExecContext(ctx,
		`UPDATE proof_tokens SET holder = $3, updated_at = $4 WHERE proof_id = $1 AND holder = $2`,
		int64(proofID), from.String(), to.String(), requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("transfer proof token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transfer proof token: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := l.OwnerOf(ctx, proofID); err != nil {
		return err
	}
	return ErrNotHolder
}
