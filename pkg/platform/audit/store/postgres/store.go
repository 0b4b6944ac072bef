package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/lib/pq"

	id "attest/pkg/domain"
	audit "attest/pkg/platform/audit"
	txcontext "attest/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append writes into the outbox table through the caller's transaction (if
// any), so a registry change and its event commit or roll back together.
// The outbox worker later publishes unpublished rows to Kafka. Rows are kept
// after publishing and double as the per-proof event history.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := audit.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, category, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = txcontext.Use(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		"proof",
		event.ProofID.String(),
		string(event.Action),
		string(event.Category),
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByProof returns the events of one proof in commit order.
func (s *Store) ListByProof(ctx context.Context, proofID id.ProofID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM outbox
		WHERE aggregate_type = 'proof' AND aggregate_id = $1
		ORDER BY seq ASC
	`, proofID.String())
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

// RecentByProof returns the limit most recent events of one proof in commit
// order. The limit is applied in SQL so long histories are never loaded whole.
func (s *Store) RecentByProof(ctx context.Context, proofID id.ProofID, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM outbox
		WHERE aggregate_type = 'proof' AND aggregate_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, proofID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()
	events, err := scanPayloads(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

// ListRecent returns the N most recent events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM outbox
		ORDER BY seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

func scanPayloads(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan outbox payload: %w", err)
		}
		event, err := audit.Unmarshal(payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// Entry is one unpublished outbox row.
type Entry struct {
	Seq       int64
	Key       string
	EventType string
	Payload   []byte
}

// ProcessBatch claims up to limit unpublished rows (skipping rows claimed by
// another worker), hands them to publish and marks them published only if
// publish succeeds. Returns how many rows were published.
func (s *Store) ProcessBatch(ctx context.Context, limit int, publish func(ctx context.Context, entries []Entry) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT seq, aggregate_id, event_type, payload FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("claim outbox rows: %w", err)
	}
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Key, &e.EventType, &e.Payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := publish(ctx, entries); err != nil {
		return 0, err
	}

	seqs := make([]int64, len(entries))
	for i, e := range entries {
		seqs[i] = e.Seq
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET published_at = now() WHERE seq = ANY($1)`,
		pq.Array(seqs),
	); err != nil {
		return 0, fmt.Errorf("mark outbox rows published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(entries), nil
}
