package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Ledger,AuditPublisher,FingerprintResolver,HistoryReader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"attest/internal/proof/models"
	"attest/internal/proof/service/mocks"
	"attest/internal/proof/store"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	audit "attest/pkg/platform/audit"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

type mockDeps struct {
	store        *mocks.MockStore
	ledger       *mocks.MockLedger
	audit        *mocks.MockAuditPublisher
	verification *mocks.MockAuditPublisher
	resolver     *mocks.MockFingerprintResolver
}

func newMockedService(t *testing.T) (*Service, mockDeps) {
	ctrl := gomock.NewController(t)
	deps := mockDeps{
		store:        mocks.NewMockStore(ctrl),
		ledger:       mocks.NewMockLedger(ctrl),
		audit:        mocks.NewMockAuditPublisher(ctrl),
		verification: mocks.NewMockAuditPublisher(ctrl),
		resolver:     mocks.NewMockFingerprintResolver(ctrl),
	}
	svc := New(deps.store, deps.ledger, store.NewSerialTx(), "registry-owner",
		WithAuditPublisher(deps.audit),
		WithVerificationPublisher(deps.verification),
		WithFingerprintResolver(deps.resolver),
	)
	return svc, deps
}

func callerCtx(caller id.Identity) context.Context {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	return requestcontext.WithCaller(ctx, caller)
}

func activeRecord(proofID id.ProofID) *models.ProofRecord {
	return &models.ProofRecord{
		ID:          proofID,
		Fingerprint: "H1",
		ContentURI:  "ipfs://H1",
		Issuer:      "issuer-a",
		Title:       "Degree",
		Active:      true,
	}
}

func TestMintFailures(t *testing.T) {
	req := models.MintRequest{To: "holder-x", Fingerprint: "H1", ContentURI: "ipfs://H1", Title: "Degree"}

	t.Run("fingerprint conflict from the store", func(t *testing.T) {
		svc, deps := newMockedService(t)
		deps.store.EXPECT().Mint(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrAlreadyUsed)

		_, err := svc.Mint(callerCtx("issuer-a"), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("store failure is internal", func(t *testing.T) {
		svc, deps := newMockedService(t)
		deps.store.EXPECT().Mint(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

		_, err := svc.Mint(callerCtx("issuer-a"), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("ledger failure aborts before any event", func(t *testing.T) {
		svc, deps := newMockedService(t)
		deps.store.EXPECT().Mint(gomock.Any(), gomock.Any()).Return(activeRecord(1), nil)
		deps.ledger.EXPECT().Mint(gomock.Any(), id.ProofID(1), id.Identity("holder-x")).Return(errors.New("ledger down"))

		_, err := svc.Mint(callerCtx("issuer-a"), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("event write failure aborts the mint", func(t *testing.T) {
		svc, deps := newMockedService(t)
		deps.store.EXPECT().Mint(gomock.Any(), gomock.Any()).Return(activeRecord(1), nil)
		deps.ledger.EXPECT().Mint(gomock.Any(), id.ProofID(1), id.Identity("holder-x")).Return(nil)
		deps.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox unavailable"))

		_, err := svc.Mint(callerCtx("issuer-a"), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("mint event carries the request metadata", func(t *testing.T) {
		svc, deps := newMockedService(t)
		deps.store.EXPECT().Mint(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, rec *models.ProofRecord) (*models.ProofRecord, error) {
				assert.Equal(t, id.Identity("issuer-a"), rec.Issuer)
				stored := rec.Clone()
				stored.ID = 7
				return stored, nil
			})
		deps.ledger.EXPECT().Mint(gomock.Any(), id.ProofID(7), id.Identity("holder-x")).Return(nil)
		deps.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				assert.Equal(t, audit.EventProofMinted, e.Action)
				assert.Equal(t, id.ProofID(7), e.ProofID)
				assert.Equal(t, "req-1", e.RequestID)
				assert.Equal(t, "ipfs://H1", e.ContentURI)
				return nil
			})

		proofID, err := svc.Mint(callerCtx("issuer-a"), req)
		require.NoError(t, err)
		assert.Equal(t, id.ProofID(7), proofID)
	})
}

func TestTransitionFailures(t *testing.T) {
	t.Run("authorization is checked inside the locked section", func(t *testing.T) {
		svc, deps := newMockedService(t)
		deps.store.EXPECT().Execute(gomock.Any(), id.ProofID(1), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ id.ProofID, validate func(*models.ProofRecord) error, _ func(*models.ProofRecord)) (*models.ProofRecord, error) {
				return nil, validate(activeRecord(1))
			})

		err := svc.Revoke(callerCtx("issuer-b"), 1, "x")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("event write failure surfaces as internal", func(t *testing.T) {
		svc, deps := newMockedService(t)
		deps.store.EXPECT().Execute(gomock.Any(), id.ProofID(1), gomock.Any(), gomock.Any()).Return(activeRecord(1), nil)
		deps.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox unavailable"))

		err := svc.Lock(callerCtx("issuer-a"), 1)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("cancelled context maps to timeout", func(t *testing.T) {
		svc, _ := newMockedService(t)
		ctx, cancel := context.WithCancel(callerCtx("issuer-a"))
		cancel()

		err := svc.Lock(ctx, 1)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func TestVerificationPublisherFailureIsIgnored(t *testing.T) {
	svc, deps := newMockedService(t)
	deps.resolver.EXPECT().ResolveFingerprint(gomock.Any(), "H1").Return(id.ProofID(1), nil)
	deps.store.EXPECT().FindByID(gomock.Any(), id.ProofID(1)).Return(activeRecord(1), nil)
	deps.verification.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("buffer full"))

	v, err := svc.VerifyByFingerprint(callerCtx("verifier"), "H1")
	require.NoError(t, err)
	assert.Equal(t, models.Verification{Exists: true, ID: 1, Active: true}, v)
}

func TestResolverFailureIsInternal(t *testing.T) {
	svc, deps := newMockedService(t)
	deps.resolver.EXPECT().ResolveFingerprint(gomock.Any(), "H1").Return(id.ProofID(0), errors.New("redis and db down"))

	_, err := svc.VerifyByFingerprint(callerCtx(""), "H1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestMissingTokenIsInternal(t *testing.T) {
	svc, deps := newMockedService(t)
	deps.store.EXPECT().FindByID(gomock.Any(), id.ProofID(1)).Return(activeRecord(1), nil)
	deps.ledger.EXPECT().OwnerOf(gomock.Any(), id.ProofID(1)).Return(id.Identity(""), sentinel.ErrNotFound)

	_, err := svc.GetRecord(callerCtx(""), 1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}
