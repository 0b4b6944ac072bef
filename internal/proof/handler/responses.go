package handler

import (
	"time"

	"attest/internal/proof/models"
	id "attest/pkg/domain"
	audit "attest/pkg/platform/audit"
)

type MintResponse struct {
	ID id.ProofID `json:"id"`
}

// RecordResponse is a proof record with its current holder.
type RecordResponse struct {
	ID           id.ProofID  `json:"id"`
	Fingerprint  string      `json:"fingerprint"`
	ContentURI   string      `json:"content_uri"`
	Issuer       id.Identity `json:"issuer"`
	Holder       id.Identity `json:"holder"`
	DocumentType string      `json:"document_type"`
	Title        string      `json:"title"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Locked       bool        `json:"locked"`
	Active       bool        `json:"active"`
}

func FromView(v *models.ProofView) *RecordResponse {
	return &RecordResponse{
		ID:           v.ID,
		Fingerprint:  v.Fingerprint,
		ContentURI:   v.ContentURI,
		Issuer:       v.Issuer,
		Holder:       v.Holder,
		DocumentType: v.DocumentType,
		Title:        v.Title,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		Locked:       v.Locked,
		Active:       v.Active,
	}
}

// LookupResponse answers a fingerprint lookup; Proof is omitted when absent.
type LookupResponse struct {
	Exists bool            `json:"exists"`
	Proof  *RecordResponse `json:"proof,omitempty"`
}

type VerifyByIDResponse struct {
	ID     id.ProofID `json:"id"`
	Active bool       `json:"active"`
}

type VerifyResponse struct {
	Exists bool       `json:"exists"`
	ID     id.ProofID `json:"id"`
	Active bool       `json:"active"`
}

type IssuerProofsResponse struct {
	Issuer id.Identity  `json:"issuer"`
	IDs    []id.ProofID `json:"ids"`
}

type StatsResponse struct {
	TotalMinted uint64 `json:"total_minted"`
}

type FingerprintResponse struct {
	Algorithm   string `json:"algorithm"`
	Fingerprint string `json:"fingerprint"`
}

// EventResponse is one entry of a proof's history.
type EventResponse struct {
	ID           string      `json:"id"`
	Action       string      `json:"action"`
	Category     string      `json:"category"`
	ProofID      id.ProofID  `json:"proof_id"`
	Actor        id.Identity `json:"actor"`
	Fingerprint  string      `json:"fingerprint,omitempty"`
	ContentURI   string      `json:"content_uri,omitempty"`
	DocumentType string      `json:"document_type,omitempty"`
	Title        string      `json:"title,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

type EventsResponse struct {
	ProofID id.ProofID      `json:"proof_id"`
	Events  []EventResponse `json:"events"`
}

func FromEvents(proofID id.ProofID, events []audit.Event) *EventsResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:           e.ID.String(),
			Action:       string(e.Action),
			Category:     string(e.Category),
			ProofID:      e.ProofID,
			Actor:        e.Actor,
			Fingerprint:  e.Fingerprint,
			ContentURI:   e.ContentURI,
			DocumentType: e.DocumentType,
			Title:        e.Title,
			Reason:       e.Reason,
			Timestamp:    e.Timestamp,
		})
	}
	return &EventsResponse{ProofID: proofID, Events: out}
}
