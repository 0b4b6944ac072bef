package store

import (
	"context"
	"sync"

	"attest/internal/proof/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

// InMemory is the process-local registry ledger. It mirrors the Postgres
// schema: records are insert-only, the fingerprint index is permanent and the
// identifier counter only moves forward on a committed mint.
type InMemory struct {
	mu       sync.RWMutex
	nextID   id.ProofID
	records  map[id.ProofID]*models.ProofRecord
	hashToID map[string]id.ProofID // doubles as the used-fingerprint set; entries are never removed
	byIssuer map[id.Identity][]id.ProofID
}

func NewInMemory() *InMemory {
	return &InMemory{
		nextID:   1,
		records:  make(map[id.ProofID]*models.ProofRecord),
		hashToID: make(map[string]id.ProofID),
		byIssuer: make(map[id.Identity][]id.ProofID),
	}
}

// Mint claims the record's fingerprint and assigns the next identifier.
// Returns sentinel.ErrAlreadyUsed, without consuming an identifier, when the
// fingerprint was ever claimed before.
func (s *InMemory) Mint(_ context.Context, record *models.ProofRecord) (*models.ProofRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, used := s.hashToID[record.Fingerprint]; used {
		return nil, sentinel.ErrAlreadyUsed
	}

	stored := record.Clone()
	stored.ID = s.nextID
	s.nextID++

	s.records[stored.ID] = stored
	s.hashToID[stored.Fingerprint] = stored.ID
	s.byIssuer[stored.Issuer] = append(s.byIssuer[stored.Issuer], stored.ID)
	return stored.Clone(), nil
}

func (s *InMemory) FindByID(_ context.Context, proofID id.ProofID) (*models.ProofRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[proofID]; ok {
		return rec.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByFingerprint(_ context.Context, fingerprint string) (*models.ProofRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proofID, ok := s.hashToID[fingerprint]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.records[proofID].Clone(), nil
}

// ResolveFingerprint returns the identifier bound to a fingerprint.
func (s *InMemory) ResolveFingerprint(_ context.Context, fingerprint string) (id.ProofID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if proofID, ok := s.hashToID[fingerprint]; ok {
		return proofID, nil
	}
	return 0, sentinel.ErrNotFound
}

// ListByIssuer returns the issuer's identifiers in mint order.
func (s *InMemory) ListByIssuer(_ context.Context, issuer id.Identity) ([]id.ProofID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.ProofID{}, s.byIssuer[issuer]...), nil
}

func (s *InMemory) TotalMinted(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.nextID - 1), nil
}

// Execute runs validate and then mutate against a copy of the record under
// the store lock, and saves the copy only if validate passed. Callers get the
// updated record back.
func (s *InMemory) Execute(_ context.Context, proofID id.ProofID, validate func(*models.ProofRecord) error, mutate func(*models.ProofRecord)) (*models.ProofRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[proofID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)

	// identity fields are fixed at mint; only flags and the content pointer move
	working.ID = current.ID
	working.Fingerprint = current.Fingerprint
	working.Issuer = current.Issuer
	working.CreatedAt = current.CreatedAt
	if current.Locked {
		working.Locked = true
	}
	s.records[proofID] = working
	return working.Clone(), nil
}
