package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attest/internal/proof/models"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newRecord(issuer id.Identity, fingerprint string) *models.ProofRecord {
	rec, err := models.NewProofRecord(issuer, fingerprint, "ipfs://"+fingerprint, "Diploma", "Title "+fingerprint, false, s.now)
	s.Require().NoError(err)
	return rec
}

func (s *InMemoryStoreSuite) TestMint() {
	s.Run("assigns sequential identifiers starting at one", func() {
		first, err := s.store.Mint(s.ctx, s.newRecord("issuer-a", "H1"))
		s.Require().NoError(err)
		second, err := s.store.Mint(s.ctx, s.newRecord("issuer-a", "H2"))
		s.Require().NoError(err)

		s.Equal(id.ProofID(1), first.ID)
		s.Equal(id.ProofID(2), second.ID)

		total, err := s.store.TotalMinted(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(2), total)
	})

	s.Run("rejects a claimed fingerprint without consuming an identifier", func() {
		_, err := s.store.Mint(s.ctx, s.newRecord("issuer-b", "H1"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)

		next, err := s.store.Mint(s.ctx, s.newRecord("issuer-b", "H3"))
		s.Require().NoError(err)
		s.Equal(id.ProofID(3), next.ID)
	})

	s.Run("returns a detached copy", func() {
		rec, err := s.store.Mint(s.ctx, s.newRecord("issuer-a", "H4"))
		s.Require().NoError(err)
		rec.Title = "tampered"

		found, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal("Title H4", found.Title)
	})
}

func (s *InMemoryStoreSuite) TestLookups() {
	minted, err := s.store.Mint(s.ctx, s.newRecord("issuer-a", "H1"))
	s.Require().NoError(err)

	s.Run("finds by fingerprint", func() {
		found, err := s.store.FindByFingerprint(s.ctx, "H1")
		s.Require().NoError(err)
		s.Equal(minted.ID, found.ID)

		resolved, err := s.store.ResolveFingerprint(s.ctx, "H1")
		s.Require().NoError(err)
		s.Equal(minted.ID, resolved)
	})

	s.Run("unknown keys return ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, 99)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByFingerprint(s.ctx, "nope")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.ResolveFingerprint(s.ctx, "nope")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("issuer index keeps mint order and ignores other issuers", func() {
		_, err := s.store.Mint(s.ctx, s.newRecord("issuer-b", "H2"))
		s.Require().NoError(err)
		third, err := s.store.Mint(s.ctx, s.newRecord("issuer-a", "H3"))
		s.Require().NoError(err)

		ids, err := s.store.ListByIssuer(s.ctx, "issuer-a")
		s.Require().NoError(err)
		s.Equal([]id.ProofID{minted.ID, third.ID}, ids)

		none, err := s.store.ListByIssuer(s.ctx, "issuer-z")
		s.Require().NoError(err)
		s.NotNil(none)
		s.Empty(none)
	})
}

func (s *InMemoryStoreSuite) TestExecute() {
	minted, err := s.store.Mint(s.ctx, s.newRecord("issuer-a", "H1"))
	s.Require().NoError(err)

	s.Run("applies the mutation when validation passes", func() {
		updated, err := s.store.Execute(s.ctx, minted.ID,
			func(r *models.ProofRecord) error { return r.CanRevoke() },
			func(r *models.ProofRecord) { r.ApplyRevocation(s.now.Add(time.Minute)) },
		)
		s.Require().NoError(err)
		s.False(updated.Active)

		found, err := s.store.FindByID(s.ctx, minted.ID)
		s.Require().NoError(err)
		s.False(found.Active)
	})

	s.Run("leaves the record untouched when validation fails", func() {
		_, err := s.store.Execute(s.ctx, minted.ID,
			func(r *models.ProofRecord) error { return r.CanRevoke() },
			func(r *models.ProofRecord) { r.ContentURI = "ipfs://changed" },
		)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		found, err := s.store.FindByID(s.ctx, minted.ID)
		s.Require().NoError(err)
		s.Equal("ipfs://H1", found.ContentURI)
	})

	s.Run("never rewrites identity fields or clears the latch", func() {
		_, err := s.store.Execute(s.ctx, minted.ID,
			func(r *models.ProofRecord) error { return r.CanLock() },
			func(r *models.ProofRecord) { r.ApplyLock(s.now) },
		)
		s.Require().NoError(err)

		_, err = s.store.Execute(s.ctx, minted.ID,
			func(*models.ProofRecord) error { return nil },
			func(r *models.ProofRecord) {
				r.Locked = false
				r.Fingerprint = "forged"
				r.Issuer = "mallory"
			},
		)
		s.Require().NoError(err)

		found, err := s.store.FindByID(s.ctx, minted.ID)
		s.Require().NoError(err)
		s.True(found.Locked)
		s.Equal("H1", found.Fingerprint)
		s.Equal(id.Identity("issuer-a"), found.Issuer)
	})

	s.Run("unknown identifier returns ErrNotFound", func() {
		_, err := s.store.Execute(s.ctx, 42,
			func(*models.ProofRecord) error { return nil },
			func(*models.ProofRecord) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentMints verifies identifiers stay dense and unique and that
// exactly one mint wins each fingerprint under contention.
func (s *InMemoryStoreSuite) TestConcurrentMints() {
	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[id.ProofID]bool)
	conflicts := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every pair of workers races for the same fingerprint
			rec, err := s.store.Mint(s.ctx, s.newRecord("issuer-a", fmt.Sprintf("H%d", i/2)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.ErrorIs(err, sentinel.ErrAlreadyUsed)
				conflicts++
				return
			}
			s.False(seen[rec.ID], "identifier %d assigned twice", rec.ID)
			seen[rec.ID] = true
		}(i)
	}
	wg.Wait()

	s.Equal(workers/2, conflicts)
	s.Len(seen, workers/2)
	for i := 1; i <= workers/2; i++ {
		s.True(seen[id.ProofID(i)], "identifier %d missing", i)
	}
}
