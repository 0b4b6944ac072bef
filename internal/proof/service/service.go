// Package service implements the proof registry: minting, verification,
// lifecycle changes and the read surface.
//
// Every mutation runs inside TxRunner.RunInTx, which is the unit of atomicity
// and serialization. State-change events are emitted inside that transaction
// through the audit publisher, so an event exists if and only if its change
// committed. Verification events go through a separate best-effort publisher.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"attest/internal/proof/metrics"
	"attest/internal/proof/models"
	"attest/internal/proof/ownership"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	audit "attest/pkg/platform/audit"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

// Store persists proof records. Implementations return sentinel errors.
type Store interface {
	Mint(ctx context.Context, record *models.ProofRecord) (*models.ProofRecord, error)
	FindByID(ctx context.Context, proofID id.ProofID) (*models.ProofRecord, error)
	ResolveFingerprint(ctx context.Context, fingerprint string) (id.ProofID, error)
	ListByIssuer(ctx context.Context, issuer id.Identity) ([]id.ProofID, error)
	TotalMinted(ctx context.Context) (uint64, error)
	Execute(ctx context.Context, proofID id.ProofID, validate func(*models.ProofRecord) error, mutate func(*models.ProofRecord)) (*models.ProofRecord, error)
}

// FingerprintResolver answers fingerprint lookups, typically a cache in front of the Store.
type FingerprintResolver interface {
	ResolveFingerprint(ctx context.Context, fingerprint string) (id.ProofID, error)
}

// Ledger is the ownership substrate the registry mints tokens into.
type Ledger interface {
	Mint(ctx context.Context, proofID id.ProofID, to id.Identity) error
	OwnerOf(ctx context.Context, proofID id.ProofID) (id.Identity, error)
}

// TxRunner scopes registry operations. RunInTx commits everything fn wrote or
// nothing; View runs a read that must not observe a half-applied write.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	View(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// HistoryReader reads back the most recent events of a proof, oldest first.
type HistoryReader interface {
	RecentByProof(ctx context.Context, proofID id.ProofID, limit int) ([]audit.Event, error)
}

// Service is the proof registry.
type Service struct {
	store     Store
	resolver  FingerprintResolver
	ledger    Ledger
	tx        TxRunner
	owner     id.Identity
	receivers []ownership.Receiver

	auditPublisher        AuditPublisher
	verificationPublisher AuditPublisher
	history               HistoryReader

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the publisher for state-change events. It is called
// inside the registry transaction; an error aborts the operation.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithVerificationPublisher sets the publisher for verification events.
// Failures are logged and never surface to the verifier.
func WithVerificationPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.verificationPublisher = publisher
	}
}

// WithFingerprintResolver replaces the store for fingerprint lookups.
func WithFingerprintResolver(resolver FingerprintResolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

// WithReceivers registers hooks notified after each mint commits.
func WithReceivers(receivers ...ownership.Receiver) Option {
	return func(s *Service) {
		s.receivers = append(s.receivers, receivers...)
	}
}

func WithHistory(history HistoryReader) Option {
	return func(s *Service) {
		s.history = history
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs the registry. owner is the registry administrator, allowed
// to manage every record alongside its issuer; it may be empty.
func New(store Store, ledger Ledger, tx TxRunner, owner id.Identity, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: store,
		ledger:   ledger,
		tx:       tx,
		owner:    owner,
		logger:   slog.Default(),
		tracer:   otel.Tracer("attest/internal/proof/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Owner returns the registry administrator.
func (s *Service) Owner() id.Identity {
	return s.owner
}

// translate maps store sentinels and model invariant failures onto the
// registry error taxonomy. Errors that already carry a code pass through.
func translate(err error, action string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		if de.Code == dErrors.CodeInvariantViolation {
			return dErrors.New(dErrors.CodeStateConflict, de.Message)
		}
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "proof not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "fingerprint already registered")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, action+" timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}

// fail records a rejected operation on the span and in metrics.
func (s *Service) fail(span trace.Span, op string, err error) error {
	code := dErrors.CodeOf(err)
	span.SetStatus(codes.Error, string(code))
	if code == dErrors.CodeInternal {
		span.RecordError(err)
	}
	s.metrics.IncRejection(op, string(code))
	return err
}

// emit publishes a state-change event inside the current transaction.
func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record "+string(event.Action))
	}
	return nil
}

// logAudit writes the structured audit line after an operation committed.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
}
