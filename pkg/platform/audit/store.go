package audit

import (
	"context"

	id "attest/pkg/domain"
)

// Store persists audit events. Implementations are append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByProof(ctx context.Context, proofID id.ProofID) ([]Event, error)
	// RecentByProof returns the limit most recent events of one proof,
	// oldest first.
	RecentByProof(ctx context.Context, proofID id.ProofID, limit int) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
