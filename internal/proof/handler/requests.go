package handler

import (
	"strconv"
	"strings"

	"attest/internal/proof/models"
	dErrors "attest/pkg/domain-errors"
)

// Field limits enforced at the transport boundary.
const (
	maxFingerprintLength  = 256
	maxContentURILength   = 2048
	maxTitleLength        = 512
	maxDocumentTypeLength = 128
	maxReasonLength       = 1024
	maxRecipientLength    = 256
)

func tooLong(field string, limit int) error {
	return dErrors.New(dErrors.CodeValidation, field+" exceeds "+strconv.Itoa(limit)+" bytes")
}

// MintRequest is the body of POST /proofs. The issuer is never part of the
// body; it is the authenticated caller.
type MintRequest struct {
	To           string `json:"to"`
	Fingerprint  string `json:"fingerprint"`
	ContentURI   string `json:"content_uri"`
	DocumentType string `json:"document_type"`
	Title        string `json:"title"`
	Lock         bool   `json:"lock"`
}

// Validate enforces size limits. Required fields and identity rules are
// checked by the registry itself.
func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	switch {
	case len(r.To) > maxRecipientLength:
		return tooLong("to", maxRecipientLength)
	case len(r.Fingerprint) > maxFingerprintLength:
		return tooLong("fingerprint", maxFingerprintLength)
	case len(r.ContentURI) > maxContentURILength:
		return tooLong("content_uri", maxContentURILength)
	case len(r.DocumentType) > maxDocumentTypeLength:
		return tooLong("document_type", maxDocumentTypeLength)
	case len(r.Title) > maxTitleLength:
		return tooLong("title", maxTitleLength)
	}
	r.To = strings.TrimSpace(r.To)
	return nil
}

// ToModel converts the body into the registry's mint arguments.
func (r *MintRequest) ToModel() models.MintRequest {
	return models.MintRequest{
		To:              r.To,
		Fingerprint:     r.Fingerprint,
		ContentURI:      r.ContentURI,
		DocumentType:    r.DocumentType,
		Title:           r.Title,
		LockImmediately: r.Lock,
	}
}

// RevokeRequest is the body of POST /proofs/{id}/revoke.
type RevokeRequest struct {
	Reason string `json:"reason"`
}

func (r *RevokeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Reason) > maxReasonLength {
		return tooLong("reason", maxReasonLength)
	}
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// UpdateContentURIRequest is the body of PUT /proofs/{id}/content-uri.
type UpdateContentURIRequest struct {
	ContentURI string `json:"content_uri"`
}

func (r *UpdateContentURIRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.ContentURI) > maxContentURILength {
		return tooLong("content_uri", maxContentURILength)
	}
	return nil
}
