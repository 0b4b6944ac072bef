package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "attest/pkg/domain"
)

// Payload is the wire form shared by the outbox and the Kafka topic. Field
// names are part of the published schema; add fields, never rename them.
type Payload struct {
	ID           string `json:"id"`
	Event        string `json:"event"`
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	ProofID      uint64 `json:"proof_id"`
	Actor        string `json:"actor"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	ContentURI   string `json:"content_uri,omitempty"`
	DocumentType string `json:"document_type"`
	Title        string `json:"title,omitempty"`
	Reason       string `json:"reason"`
	RequestID    string `json:"request_id,omitempty"`
}

// Marshal encodes an event into its wire payload.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(Payload{
		ID:           e.ID.String(),
		Event:        string(e.Action),
		Category:     string(e.Category),
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		ProofID:      uint64(e.ProofID),
		Actor:        e.Actor.String(),
		Fingerprint:  e.Fingerprint,
		ContentURI:   e.ContentURI,
		DocumentType: e.DocumentType,
		Title:        e.Title,
		Reason:       e.Reason,
		RequestID:    e.RequestID,
	})
}

// Unmarshal decodes a wire payload back into an event.
func Unmarshal(data []byte) (Event, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	eventID, err := uuid.Parse(p.ID)
	if err != nil {
		return Event{}, fmt.Errorf("parse audit event id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("parse audit timestamp: %w", err)
	}
	return Event{
		ID:           eventID,
		Category:     EventCategory(p.Category),
		Action:       AuditEvent(p.Event),
		Timestamp:    ts,
		ProofID:      id.ProofID(p.ProofID),
		Actor:        id.Identity(p.Actor),
		Fingerprint:  p.Fingerprint,
		ContentURI:   p.ContentURI,
		DocumentType: p.DocumentType,
		Title:        p.Title,
		Reason:       p.Reason,
		RequestID:    p.RequestID,
	}, nil
}
