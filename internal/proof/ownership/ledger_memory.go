package ownership

import (
	"context"
	"sync"

	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// InMemoryLedger is a map-backed token ledger.
type InMemoryLedger struct {
	mu      sync.RWMutex
	holders map[id.ProofID]id.Identity
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{holders: make(map[id.ProofID]id.Identity)}
}

func (l *InMemoryLedger) Mint(_ context.Context, proofID id.ProofID, to id.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.holders[proofID]; ok {
		return ErrTokenExists
	}
	l.holders[proofID] = to
	return nil
}

func (l *InMemoryLedger) OwnerOf(_ context.Context, proofID id.ProofID) (id.Identity, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	holder, ok := l.holders[proofID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return holder, nil
}

// Transfer moves the token from its current holder to another identity.
func (l *InMemoryLedger) Transfer(_ context.Context, proofID id.ProofID, from, to id.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.holders[proofID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if holder != from {
		return ErrNotHolder
	}
	l.holders[proofID] = to
	return nil
}
