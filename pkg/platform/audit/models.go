package audit

import (
	"time"

	"github.com/google/uuid"

	id "attest/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and delivery guarantees.
type EventCategory string

const (
	// CategoryCompliance covers registry state changes. They are written in the
	// same transaction as the change and must never be lost.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers observational events such as verifications.
	// They are best effort and never block the operation that produced them.
	CategoryOperations EventCategory = "operations"
)

// AuditEvent is the stable event name published to external indexers.
type AuditEvent string

const (
	EventProofMinted         AuditEvent = "ProofMinted"
	EventProofVerified       AuditEvent = "ProofVerified"
	EventProofLocked         AuditEvent = "ProofLocked"
	EventProofRevoked        AuditEvent = "ProofRevoked"
	EventProofRestored       AuditEvent = "ProofRestored"
	EventProofContentUpdated AuditEvent = "ProofContentUpdated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventProofMinted:         CategoryCompliance,
	EventProofLocked:         CategoryCompliance,
	EventProofRevoked:        CategoryCompliance,
	EventProofRestored:       CategoryCompliance,
	EventProofContentUpdated: CategoryCompliance,
	EventProofVerified:       CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from registry logic. Fields not relevant to an action stay
// empty: ProofMinted fills the descriptive fields, ProofRevoked fills Reason,
// ProofVerified only needs ProofID, Actor and Timestamp.
type Event struct {
	ID           uuid.UUID
	Category     EventCategory
	Action       AuditEvent
	Timestamp    time.Time
	ProofID      id.ProofID
	Actor        id.Identity // issuer, verifier, locker, revoker, restorer or updater
	Fingerprint  string
	ContentURI   string
	DocumentType string
	Title        string
	Reason       string
	RequestID    string
}

// Normalize fills the derived fields (ID, category, timestamp) when unset.
func (e Event) Normalize(now time.Time) Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Category == "" {
		e.Category = e.Action.Category()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	return e
}
