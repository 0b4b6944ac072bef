package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"attest/internal/proof/models"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	audit "attest/pkg/platform/audit"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

// AnonymousVerifier is recorded as the verifier when nobody is authenticated.
const AnonymousVerifier id.Identity = "anonymous"

// VerifyByFingerprint reports whether a proof exists for the fingerprint and
// whether it is active. An unknown fingerprint is not an error; it yields the
// zero Verification. Verification never changes registry state.
func (s *Service) VerifyByFingerprint(ctx context.Context, fingerprint string) (models.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "proof.VerifyByFingerprint")
	defer span.End()

	var result models.Verification
	err := s.tx.View(ctx, func(ctx context.Context) error {
		proofID, err := s.resolver.ResolveFingerprint(ctx, fingerprint)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		record, err := s.store.FindByID(ctx, proofID)
		if err != nil {
			return err
		}
		result = models.Verification{Exists: true, ID: record.ID, Active: record.Active}
		return nil
	})
	if err != nil {
		return models.Verification{}, s.fail(span, "verify", translate(err, "verify proof"))
	}

	if !result.Exists {
		s.metrics.IncVerification("fingerprint", "missing")
		return result, nil
	}
	span.SetAttributes(attribute.Int64("proof.id", int64(result.ID)))
	s.metrics.IncVerification("fingerprint", activeLabel(result.Active))
	s.recordVerification(ctx, result.ID)
	return result, nil
}

// VerifyByID reports whether the proof is active.
func (s *Service) VerifyByID(ctx context.Context, proofID id.ProofID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "proof.VerifyByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("proof.id", int64(proofID)))

	var active bool
	err := s.tx.View(ctx, func(ctx context.Context) error {
		record, err := s.store.FindByID(ctx, proofID)
		if err != nil {
			return err
		}
		active = record.Active
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncVerification("id", "missing")
		}
		return false, s.fail(span, "verify", translate(err, "verify proof"))
	}

	s.metrics.IncVerification("id", activeLabel(active))
	s.recordVerification(ctx, proofID)
	return active, nil
}

// recordVerification emits the observational event. It is best effort: a
// full buffer or store failure is logged and the verify result stands.
func (s *Service) recordVerification(ctx context.Context, proofID id.ProofID) {
	verifier := requestcontext.Caller(ctx)
	if verifier.IsNil() {
		verifier = AnonymousVerifier
	}
	if s.verificationPublisher == nil {
		return
	}
	err := s.verificationPublisher.Emit(ctx, audit.Event{
		Action:    audit.EventProofVerified,
		ProofID:   proofID,
		Actor:     verifier,
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record verification",
			"proof_id", proofID,
			"verifier", verifier,
			"error", err,
		)
	}
}

// GetRecord returns the record joined with its current holder.
func (s *Service) GetRecord(ctx context.Context, proofID id.ProofID) (*models.ProofView, error) {
	ctx, span := s.tracer.Start(ctx, "proof.GetRecord")
	defer span.End()
	span.SetAttributes(attribute.Int64("proof.id", int64(proofID)))

	var view *models.ProofView
	err := s.tx.View(ctx, func(ctx context.Context) error {
		record, err := s.store.FindByID(ctx, proofID)
		if err != nil {
			return err
		}
		view, err = s.withHolder(ctx, record)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "get", translate(err, "load proof"))
	}
	return view, nil
}

// GetRecordByFingerprint returns the record for a fingerprint. The bool is
// false, with no error, when the fingerprint was never registered.
func (s *Service) GetRecordByFingerprint(ctx context.Context, fingerprint string) (*models.ProofView, bool, error) {
	ctx, span := s.tracer.Start(ctx, "proof.GetRecordByFingerprint")
	defer span.End()

	var view *models.ProofView
	err := s.tx.View(ctx, func(ctx context.Context) error {
		proofID, err := s.resolver.ResolveFingerprint(ctx, fingerprint)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		record, err := s.store.FindByID(ctx, proofID)
		if err != nil {
			return err
		}
		view, err = s.withHolder(ctx, record)
		return err
	})
	if err != nil {
		return nil, false, s.fail(span, "get", translate(err, "load proof"))
	}
	return view, view != nil, nil
}

func (s *Service) withHolder(ctx context.Context, record *models.ProofRecord) (*models.ProofView, error) {
	holder, err := s.ledger.OwnerOf(ctx, record.ID)
	if err != nil {
		// a committed record always has a token
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve proof holder")
	}
	return &models.ProofView{ProofRecord: *record, Holder: holder}, nil
}

// IssuerRecords lists the identifiers minted by issuer in mint order,
// including revoked and locked ones. Unknown issuers yield an empty list.
func (s *Service) IssuerRecords(ctx context.Context, issuer id.Identity) ([]id.ProofID, error) {
	ctx, span := s.tracer.Start(ctx, "proof.IssuerRecords")
	defer span.End()

	var ids []id.ProofID
	err := s.tx.View(ctx, func(ctx context.Context) error {
		var err error
		ids, err = s.store.ListByIssuer(ctx, issuer)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "list", translate(err, "list issuer proofs"))
	}
	if ids == nil {
		ids = []id.ProofID{}
	}
	return ids, nil
}

// TotalMinted returns the number of committed mints, which is also the
// highest identifier assigned so far.
func (s *Service) TotalMinted(ctx context.Context) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "proof.TotalMinted")
	defer span.End()

	var total uint64
	err := s.tx.View(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.store.TotalMinted(ctx)
		return err
	})
	if err != nil {
		return 0, s.fail(span, "stats", translate(err, "count proofs"))
	}
	return total, nil
}

// Events returns the limit most recent events of a proof, oldest first.
func (s *Service) Events(ctx context.Context, proofID id.ProofID, limit int) ([]audit.Event, error) {
	ctx, span := s.tracer.Start(ctx, "proof.Events")
	defer span.End()

	if limit < 1 {
		return nil, s.fail(span, "events", dErrors.New(dErrors.CodeValidation, "limit must be positive"))
	}

	err := s.tx.View(ctx, func(ctx context.Context) error {
		_, err := s.store.FindByID(ctx, proofID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "events", translate(err, "load proof"))
	}
	if s.history == nil {
		return []audit.Event{}, nil
	}
	events, err := s.history.RecentByProof(ctx, proofID, limit)
	if err != nil {
		return nil, s.fail(span, "events", translate(err, "load proof events"))
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
