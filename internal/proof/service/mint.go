package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"attest/internal/proof/models"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	audit "attest/pkg/platform/audit"
	"attest/pkg/requestcontext"
)

// Mint registers a new proof for the calling issuer and hands its token to
// req.To. It runs in three phases: validate, commit (identifier, record,
// fingerprint claim, token and events in one transaction), then notify the
// receivers. A failure before commit consumes no identifier.
func (s *Service) Mint(ctx context.Context, req models.MintRequest) (id.ProofID, error) {
	const op = "mint"
	ctx, span := s.tracer.Start(ctx, "proof.Mint")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveLatency(op, time.Since(start)) }()

	if err := guardReentry(ctx); err != nil {
		return 0, s.fail(span, op, err)
	}
	issuer := requestcontext.Caller(ctx)
	if issuer.IsNil() {
		return 0, s.fail(span, op, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}
	to, err := id.ParseIdentity(req.To)
	if err != nil {
		return 0, s.fail(span, op, dErrors.Wrap(err, dErrors.CodeValidation, "invalid recipient"))
	}

	now := requestcontext.Now(ctx)
	record, err := models.NewProofRecord(issuer, req.Fingerprint, req.ContentURI, req.DocumentType, req.Title, req.LockImmediately, now)
	if err != nil {
		// required-field failures are the caller's fault here, not a state problem
		return 0, s.fail(span, op, dErrors.New(dErrors.CodeValidation, err.Error()))
	}

	var minted *models.ProofRecord
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := s.store.Mint(ctx, record)
		if err != nil {
			return err
		}
		if err := s.ledger.Mint(ctx, stored.ID, to); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create ownership token")
		}
		if err := s.emit(ctx, audit.Event{
			Action:       audit.EventProofMinted,
			ProofID:      stored.ID,
			Actor:        issuer,
			Fingerprint:  stored.Fingerprint,
			ContentURI:   stored.ContentURI,
			DocumentType: stored.DocumentType,
			Title:        stored.Title,
		}); err != nil {
			return err
		}
		if stored.Locked {
			if err := s.emit(ctx, audit.Event{
				Action:  audit.EventProofLocked,
				ProofID: stored.ID,
				Actor:   issuer,
			}); err != nil {
				return err
			}
		}
		minted = stored
		return nil
	})
	if err != nil {
		return 0, s.fail(span, op, translate(err, "mint proof"))
	}

	span.SetAttributes(attribute.Int64("proof.id", int64(minted.ID)))
	s.metrics.IncMinted()
	s.logAudit(ctx, audit.EventProofMinted,
		"proof_id", minted.ID,
		"issuer", issuer,
		"holder", to,
		"locked", minted.Locked,
	)
	if minted.Locked {
		s.logAudit(ctx, audit.EventProofLocked, "proof_id", minted.ID, "locker", issuer)
	}

	s.notifyReceivers(ctx, minted.ID, to)
	return minted.ID, nil
}

// notifyReceivers runs the post-commit hooks. The mint is already durable, so
// hook failures are logged and do not change the result.
func (s *Service) notifyReceivers(ctx context.Context, proofID id.ProofID, to id.Identity) {
	if len(s.receivers) == 0 {
		return
	}
	hookCtx := markMintInFlight(ctx)
	for _, r := range s.receivers {
		if err := r.OnProofReceived(hookCtx, proofID, to); err != nil {
			s.logger.WarnContext(ctx, "proof receiver hook failed",
				"proof_id", proofID,
				"holder", to,
				"error", err,
			)
		}
	}
}
