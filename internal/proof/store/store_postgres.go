package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"attest/internal/proof/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
	txcontext "attest/pkg/platform/tx"
)

const uniqueViolation = "23505"

const proofColumns = `id, fingerprint, content_uri, issuer, document_type, title, locked, active, created_at, updated_at`

// PostgresStore persists proof records in PostgreSQL. Writes join the
// transaction carried by ctx when there is one and open their own otherwise.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Mint locks the identifier counter, claims the fingerprint and inserts the
// record. The counter lock serializes concurrent mints; the unique
// constraint on used_fingerprints backs up the explicit check.
func (s *PostgresStore) Mint(ctx context.Context, record *models.ProofRecord) (*models.ProofRecord, error) {
	var minted *models.ProofRecord
	err := s.inTx(ctx, func(ctx context.Context, q txcontext.Querier) error {
		var nextID int64
		if err := q.QueryRowContext(ctx,
			`SELECT next_id FROM registry_state WHERE id = 1 FOR UPDATE`,
		).Scan(&nextID); err != nil {
			return fmt.Errorf("lock registry counter: %w", err)
		}

		var claimed int64
		err := q.QueryRowContext(ctx,
			`SELECT proof_id FROM used_fingerprints WHERE fingerprint = $1`, record.Fingerprint,
		).Scan(&claimed)
		switch {
		case err == nil:
			return sentinel.ErrAlreadyUsed
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check fingerprint: %w", err)
		}

		stored := record.Clone()
		stored.ID = id.ProofID(nextID)

		if _, err := q.ExecContext(ctx, `
			INSERT INTO proofs (`+proofColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, nextID, stored.Fingerprint, stored.ContentURI, stored.Issuer.String(), stored.DocumentType,
			stored.Title, stored.Locked, stored.Active, stored.CreatedAt, stored.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("insert proof: %w", err)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO used_fingerprints (fingerprint, proof_id) VALUES ($1, $2)`,
			stored.Fingerprint, nextID,
		); err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("claim fingerprint: %w", err)
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE registry_state SET next_id = next_id + 1 WHERE id = 1`,
		); err != nil {
			return fmt.Errorf("advance registry counter: %w", err)
		}
		minted = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted.Clone(), nil
}

func (s *PostgresStore) FindByID(ctx context.Context, proofID id.ProofID) (*models.ProofRecord, error) {
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+proofColumns+` FROM proofs WHERE id = $1`, int64(proofID))
	return scanProof(row)
}

func (s *PostgresStore) FindByFingerprint(ctx context.Context, fingerprint string) (*models.ProofRecord, error) {
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT p.id, p.fingerprint, p.content_uri, p.issuer, p.document_type, p.title,
		       p.locked, p.active, p.created_at, p.updated_at
		FROM used_fingerprints u
		JOIN proofs p ON p.id = u.proof_id
		WHERE u.fingerprint = $1
	`, fingerprint)
	return scanProof(row)
}

func (s *PostgresStore) ResolveFingerprint(ctx context.Context, fingerprint string) (id.ProofID, error) {
	var proofID int64
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT proof_id FROM used_fingerprints WHERE fingerprint = $1`, fingerprint,
	).Scan(&proofID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("resolve fingerprint: %w", err)
	}
	return id.ProofID(proofID), nil
}

// ListByIssuer returns the issuer's identifiers in mint order.
func (s *PostgresStore) ListByIssuer(ctx context.Context, issuer id.Identity) ([]id.ProofID, error) {
	var raw []int64
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(id ORDER BY id), '{}') FROM proofs WHERE issuer = $1`,
		issuer.String(),
	).Scan(pq.Array(&raw))
	if err != nil {
		return nil, fmt.Errorf("list issuer proofs: %w", err)
	}
	ids := make([]id.ProofID, 0, len(raw))
	for _, v := range raw {
		ids = append(ids, id.ProofID(v))
	}
	return ids, nil
}

func (s *PostgresStore) TotalMinted(ctx context.Context) (uint64, error) {
	var nextID int64
	if err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT next_id FROM registry_state WHERE id = 1`,
	).Scan(&nextID); err != nil {
		return 0, fmt.Errorf("read registry counter: %w", err)
	}
	return uint64(nextID - 1), nil
}

// Execute locks the record row, runs validate and mutate against it and
// writes the mutable columns back.
func (s *PostgresStore) Execute(ctx context.Context, proofID id.ProofID, validate func(*models.ProofRecord) error, mutate func(*models.ProofRecord)) (*models.ProofRecord, error) {
	var updated *models.ProofRecord
	err := s.inTx(ctx, func(ctx context.Context, q txcontext.Querier) error {
		record, err := scanProof(q.QueryRowContext(ctx,
			`SELECT `+proofColumns+` FROM proofs WHERE id = $1 FOR UPDATE`, int64(proofID)))
		if err != nil {
			return err
		}
		if err := validate(record); err != nil {
			return err
		}
		mutate(record)

		if _, err := q.ExecContext(ctx, `
			UPDATE proofs
			SET content_uri = $2, locked = $3, active = $4, updated_at = $5
			WHERE id = $1
		`, int64(proofID), record.ContentURI, record.Locked, record.Active, record.UpdatedAt); err != nil {
			return fmt.Errorf("update proof: %w", err)
		}
		updated = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(ctx context.Context, q txcontext.Querier) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(ctx, tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin proof tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit proof tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProof(row rowScanner) (*models.ProofRecord, error) {
	var (
		record models.ProofRecord
		rawID  int64
		issuer string
	)
	err := row.Scan(&rawID, &record.Fingerprint, &record.ContentURI, &issuer, &record.DocumentType,
		&record.Title, &record.Locked, &record.Active, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan proof: %w", err)
	}
	record.ID = id.ProofID(rawID)
	record.Issuer = id.Identity(issuer)
	return &record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
