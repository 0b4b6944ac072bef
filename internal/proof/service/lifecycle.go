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

// transition describes one record mutation: the precondition, the change and
// the event recording it.
type transition struct {
	op     string
	span   string
	args   func() error // argument validation, before any lookup
	check  func(*models.ProofRecord) error
	apply  func(*models.ProofRecord, time.Time)
	event  audit.Event
	logKey string
}

// Lock sets the one-way latch. Afterwards no lifecycle operation succeeds on
// the record, for anyone.
func (s *Service) Lock(ctx context.Context, proofID id.ProofID) error {
	return s.transition(ctx, proofID, transition{
		op:     "lock",
		span:   "proof.Lock",
		check:  (*models.ProofRecord).CanLock,
		apply:  (*models.ProofRecord).ApplyLock,
		event:  audit.Event{Action: audit.EventProofLocked},
		logKey: "locker",
	})
}

// Revoke marks an active, unlocked record inactive. The fingerprint stays
// claimed.
func (s *Service) Revoke(ctx context.Context, proofID id.ProofID, reason string) error {
	return s.transition(ctx, proofID, transition{
		op:     "revoke",
		span:   "proof.Revoke",
		check:  (*models.ProofRecord).CanRevoke,
		apply:  (*models.ProofRecord).ApplyRevocation,
		event:  audit.Event{Action: audit.EventProofRevoked, Reason: reason},
		logKey: "revoker",
	})
}

// Restore reactivates a revoked, unlocked record.
func (s *Service) Restore(ctx context.Context, proofID id.ProofID) error {
	return s.transition(ctx, proofID, transition{
		op:     "restore",
		span:   "proof.Restore",
		check:  (*models.ProofRecord).CanRestore,
		apply:  (*models.ProofRecord).ApplyRestoration,
		event:  audit.Event{Action: audit.EventProofRestored},
		logKey: "restorer",
	})
}

// UpdateContentURI rotates the content pointer of an unlocked record without
// touching its identity or flags.
func (s *Service) UpdateContentURI(ctx context.Context, proofID id.ProofID, uri string) error {
	return s.transition(ctx, proofID, transition{
		op:   "content_uri",
		span: "proof.UpdateContentURI",
		args: func() error {
			if uri == "" {
				return dErrors.New(dErrors.CodeValidation, "content uri cannot be empty")
			}
			return nil
		},
		check: func(r *models.ProofRecord) error {
			return r.CanUpdateContentURI(uri)
		},
		apply: func(r *models.ProofRecord, now time.Time) {
			r.ApplyContentURI(uri, now)
		},
		event:  audit.Event{Action: audit.EventProofContentUpdated, ContentURI: uri},
		logKey: "updater",
	})
}

// transition applies checks in a fixed order: reentrancy, existence,
// authorization, then the lock latch and transition precondition (both in
// the model's CanX). The record row is locked for the whole check-and-apply.
func (s *Service) transition(ctx context.Context, proofID id.ProofID, t transition) error {
	ctx, span := s.tracer.Start(ctx, t.span)
	defer span.End()
	span.SetAttributes(attribute.Int64("proof.id", int64(proofID)))
	start := time.Now()
	defer func() { s.metrics.ObserveLatency(t.op, time.Since(start)) }()

	if err := guardReentry(ctx); err != nil {
		return s.fail(span, t.op, err)
	}
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return s.fail(span, t.op, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}
	if t.args != nil {
		if err := t.args(); err != nil {
			return s.fail(span, t.op, err)
		}
	}
	now := requestcontext.Now(ctx)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.store.Execute(ctx, proofID,
			func(r *models.ProofRecord) error {
				if !r.CanBeManagedBy(caller, s.owner) {
					return dErrors.New(dErrors.CodeForbidden, "caller is neither the issuer nor the registry owner")
				}
				return t.check(r)
			},
			func(r *models.ProofRecord) {
				t.apply(r, now)
			},
		)
		if err != nil {
			return err
		}
		event := t.event
		event.ProofID = proofID
		event.Actor = caller
		return s.emit(ctx, event)
	})
	if err != nil {
		return s.fail(span, t.op, translate(err, t.op+" proof"))
	}

	s.metrics.IncMutation(t.op)
	attrs := []any{"proof_id", proofID, t.logKey, caller}
	if t.event.Reason != "" {
		attrs = append(attrs, "reason", t.event.Reason)
	}
	s.logAudit(ctx, t.event.Action, attrs...)
	return nil
}
