// Package handler exposes the proof registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"attest/internal/platform/middleware"
	"attest/internal/proof/models"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/fingerprint"
	audit "attest/pkg/platform/audit"
	"attest/pkg/platform/httputil"
	"attest/pkg/requestcontext"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000

	// maxDocumentBytes caps the body hashed by POST /fingerprints.
	maxDocumentBytes = 32 << 20
)

// Service is the registry surface the handler drives.
type Service interface {
	Mint(ctx context.Context, req models.MintRequest) (id.ProofID, error)
	GetRecord(ctx context.Context, proofID id.ProofID) (*models.ProofView, error)
	GetRecordByFingerprint(ctx context.Context, fingerprint string) (*models.ProofView, bool, error)
	VerifyByID(ctx context.Context, proofID id.ProofID) (bool, error)
	VerifyByFingerprint(ctx context.Context, fingerprint string) (models.Verification, error)
	Lock(ctx context.Context, proofID id.ProofID) error
	Revoke(ctx context.Context, proofID id.ProofID, reason string) error
	Restore(ctx context.Context, proofID id.ProofID) error
	UpdateContentURI(ctx context.Context, proofID id.ProofID, uri string) error
	IssuerRecords(ctx context.Context, issuer id.Identity) ([]id.ProofID, error)
	TotalMinted(ctx context.Context) (uint64, error)
	Events(ctx context.Context, proofID id.ProofID, limit int) ([]audit.Event, error)
}

// Handler wires proof endpoints to the registry.
type Handler struct {
	service   Service
	validator middleware.CallerValidator
	logger    *slog.Logger
}

func New(service Service, validator middleware.CallerValidator, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		validator: validator,
		logger:    logger,
	}
}

// Register mounts the proof endpoints. Mutations require a bearer token;
// verification accepts one to attribute the verifier; reads are public.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCaller(h.validator, h.logger))
		r.Post("/proofs", h.HandleMint)
		r.Post("/proofs/{id}/lock", h.HandleLock)
		r.Post("/proofs/{id}/revoke", h.HandleRevoke)
		r.Post("/proofs/{id}/restore", h.HandleRestore)
		r.Put("/proofs/{id}/content-uri", h.HandleUpdateContentURI)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalCaller(h.validator, h.logger))
		r.Post("/proofs/{id}/verify", h.HandleVerifyByID)
		r.Post("/verify/{fingerprint}", h.HandleVerifyByFingerprint)
	})

	r.Get("/proofs/{id}", h.HandleGetRecord)
	r.Get("/proofs/{id}/events", h.HandleEvents)
	r.Get("/proofs/by-fingerprint/{fingerprint}", h.HandleGetByFingerprint)
	r.Get("/issuers/{issuer}/proofs", h.HandleIssuerProofs)
	r.Get("/stats", h.HandleStats)
	r.Post("/fingerprints", h.HandleFingerprint)
}

// HandleMint handles POST /proofs.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	proofID, err := h.service.Mint(ctx, req.ToModel())
	if err != nil {
		h.logFailure(ctx, "mint failed", err, "fingerprint", req.Fingerprint)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, MintResponse{ID: proofID})
}

// HandleGetRecord handles GET /proofs/{id}.
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	proofID, ok := h.proofID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetRecord(r.Context(), proofID)
	if err != nil {
		h.logFailure(r.Context(), "get record failed", err, "proof_id", proofID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromView(view))
}

// HandleGetByFingerprint handles GET /proofs/by-fingerprint/{fingerprint}.
// An unknown fingerprint is a normal answer, not a 404.
func (h *Handler) HandleGetByFingerprint(w http.ResponseWriter, r *http.Request) {
	fp, ok := h.fingerprintParam(w, r)
	if !ok {
		return
	}

	view, found, err := h.service.GetRecordByFingerprint(r.Context(), fp)
	if err != nil {
		h.logFailure(r.Context(), "fingerprint lookup failed", err, "fingerprint", fp)
		httputil.WriteError(w, err)
		return
	}
	resp := LookupResponse{Exists: found}
	if found {
		resp.Proof = FromView(view)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleVerifyByID handles POST /proofs/{id}/verify.
func (h *Handler) HandleVerifyByID(w http.ResponseWriter, r *http.Request) {
	proofID, ok := h.proofID(w, r)
	if !ok {
		return
	}

	active, err := h.service.VerifyByID(r.Context(), proofID)
	if err != nil {
		h.logFailure(r.Context(), "verify failed", err, "proof_id", proofID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyByIDResponse{ID: proofID, Active: active})
}

// HandleVerifyByFingerprint handles POST /verify/{fingerprint}.
func (h *Handler) HandleVerifyByFingerprint(w http.ResponseWriter, r *http.Request) {
	fp, ok := h.fingerprintParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.VerifyByFingerprint(r.Context(), fp)
	if err != nil {
		h.logFailure(r.Context(), "verify failed", err, "fingerprint", fp)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{Exists: result.Exists, ID: result.ID, Active: result.Active})
}

// HandleLock handles POST /proofs/{id}/lock.
func (h *Handler) HandleLock(w http.ResponseWriter, r *http.Request) {
	proofID, ok := h.proofID(w, r)
	if !ok {
		return
	}
	h.finishMutation(w, r, "lock", proofID, h.service.Lock(r.Context(), proofID))
}

// HandleRevoke handles POST /proofs/{id}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proofID, ok := h.proofID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishMutation(w, r, "revoke", proofID, h.service.Revoke(ctx, proofID, req.Reason))
}

// HandleRestore handles POST /proofs/{id}/restore.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	proofID, ok := h.proofID(w, r)
	if !ok {
		return
	}
	h.finishMutation(w, r, "restore", proofID, h.service.Restore(r.Context(), proofID))
}

// HandleUpdateContentURI handles PUT /proofs/{id}/content-uri.
func (h *Handler) HandleUpdateContentURI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proofID, ok := h.proofID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateContentURIRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishMutation(w, r, "update_content_uri", proofID, h.service.UpdateContentURI(ctx, proofID, req.ContentURI))
}

// HandleIssuerProofs handles GET /issuers/{issuer}/proofs.
func (h *Handler) HandleIssuerProofs(w http.ResponseWriter, r *http.Request) {
	issuer, err := id.ParseIdentity(chi.URLParam(r, "issuer"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid issuer"))
		return
	}

	ids, err := h.service.IssuerRecords(r.Context(), issuer)
	if err != nil {
		h.logFailure(r.Context(), "issuer listing failed", err, "issuer", issuer)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IssuerProofsResponse{Issuer: issuer, IDs: ids})
}

// HandleStats handles GET /stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalMinted(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "stats failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatsResponse{TotalMinted: total})
}

// HandleEvents handles GET /proofs/{id}/events. The most recent limit
// events are returned, oldest first.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	proofID, ok := h.proofID(w, r)
	if !ok {
		return
	}
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and "+strconv.Itoa(maxEventLimit)))
			return
		}
		limit = n
	}

	events, err := h.service.Events(r.Context(), proofID, limit)
	if err != nil {
		h.logFailure(r.Context(), "event history failed", err, "proof_id", proofID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvents(proofID, events))
}

// HandleFingerprint handles POST /fingerprints?alg=. It digests the raw body
// so clients can compute the same fingerprint the registry expects.
func (h *Handler) HandleFingerprint(w http.ResponseWriter, r *http.Request) {
	alg, err := fingerprint.ParseAlgorithm(r.URL.Query().Get("alg"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sum, err := fingerprint.SumReader(alg, http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read document"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FingerprintResponse{Algorithm: string(alg), Fingerprint: sum})
}

func (h *Handler) finishMutation(w http.ResponseWriter, r *http.Request, op string, proofID id.ProofID, err error) {
	if err != nil {
		h.logFailure(r.Context(), op+" failed", err, "proof_id", proofID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) proofID(w http.ResponseWriter, r *http.Request) (id.ProofID, bool) {
	proofID, err := id.ParseProofID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid proof id"))
		return 0, false
	}
	return proofID, true
}

func (h *Handler) fingerprintParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	fp := chi.URLParam(r, "fingerprint")
	if fp == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "fingerprint is required"))
		return "", false
	}
	if len(fp) > maxFingerprintLength {
		httputil.WriteError(w, tooLong("fingerprint", maxFingerprintLength))
		return "", false
	}
	return fp, true
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx),
		"error", err,
	)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg, attrs...)
	default:
		h.logger.WarnContext(ctx, msg, attrs...)
	}
}
