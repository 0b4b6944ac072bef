package models

import (
	"time"

	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// ProofRecord is the aggregate root binding a document fingerprint to its
// issuance metadata and lifecycle flags.
//
// Invariants:
//   - ID, Fingerprint, Issuer, DocumentType, Title and CreatedAt never change
//   - Locked is a one-way latch: once true it stays true
//   - while Locked, no flag or field may change (lock, revoke, restore, URI update)
//   - Active toggles only through revoke (true→false) and restore (false→true)
//   - ContentURI is the only mutable field and is never empty
//
// The current holder is not stored here. It lives in the ownership ledger and
// is joined in at read time (see ProofView).
type ProofRecord struct {
	ID           id.ProofID  `json:"id"`
	Fingerprint  string      `json:"fingerprint"`
	ContentURI   string      `json:"content_uri"`
	Issuer       id.Identity `json:"issuer"`
	DocumentType string      `json:"document_type"`
	Title        string      `json:"title"`
	CreatedAt    time.Time   `json:"created_at"`
	Locked       bool        `json:"locked"`
	Active       bool        `json:"active"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewProofRecord builds an unsaved record. The identifier is assigned by the
// store when the mint commits.
func NewProofRecord(issuer id.Identity, fingerprint, contentURI, documentType, title string, lock bool, now time.Time) (*ProofRecord, error) {
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer is required")
	}
	if fingerprint == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fingerprint cannot be empty")
	}
	if contentURI == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "content uri cannot be empty")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "title cannot be empty")
	}
	return &ProofRecord{
		Fingerprint:  fingerprint,
		ContentURI:   contentURI,
		Issuer:       issuer,
		DocumentType: documentType,
		Title:        title,
		CreatedAt:    now,
		UpdatedAt:    now,
		Locked:       lock,
		Active:       true,
	}, nil
}

// Clone returns a detached copy so stores never hand out shared pointers.
func (p *ProofRecord) Clone() *ProofRecord {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// CanBeManagedBy reports whether caller may mutate the record: the issuer of
// record or the registry owner. The holder has no say.
func (p *ProofRecord) CanBeManagedBy(caller, registryOwner id.Identity) bool {
	if caller.IsNil() {
		return false
	}
	return caller == p.Issuer || (!registryOwner.IsNil() && caller == registryOwner)
}

func (p *ProofRecord) ensureUnlocked() error {
	if p.Locked {
		return dErrors.New(dErrors.CodeInvariantViolation, "proof is locked")
	}
	return nil
}

// CanLock checks whether the lock latch can be set.
func (p *ProofRecord) CanLock() error {
	return p.ensureUnlocked()
}

// ApplyLock sets the latch. Call CanLock first.
func (p *ProofRecord) ApplyLock(now time.Time) {
	p.Locked = true
	p.UpdatedAt = now
}

// CanRevoke checks the record is unlocked and currently active.
func (p *ProofRecord) CanRevoke() error {
	if err := p.ensureUnlocked(); err != nil {
		return err
	}
	if !p.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "proof is already revoked")
	}
	return nil
}

// ApplyRevocation marks the record inactive. Call CanRevoke first.
func (p *ProofRecord) ApplyRevocation(now time.Time) {
	p.Active = false
	p.UpdatedAt = now
}

// CanRestore checks the record is unlocked and currently revoked.
func (p *ProofRecord) CanRestore() error {
	if err := p.ensureUnlocked(); err != nil {
		return err
	}
	if p.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "proof is already active")
	}
	return nil
}

// ApplyRestoration marks the record active again. Call CanRestore first.
func (p *ProofRecord) ApplyRestoration(now time.Time) {
	p.Active = true
	p.UpdatedAt = now
}

// CanUpdateContentURI checks the record is unlocked and the new URI is usable.
func (p *ProofRecord) CanUpdateContentURI(uri string) error {
	if err := p.ensureUnlocked(); err != nil {
		return err
	}
	if uri == "" {
		return dErrors.New(dErrors.CodeValidation, "content uri cannot be empty")
	}
	return nil
}

// ApplyContentURI replaces the content pointer. Call CanUpdateContentURI first.
func (p *ProofRecord) ApplyContentURI(uri string, now time.Time) {
	p.ContentURI = uri
	p.UpdatedAt = now
}

// ProofView is a record joined with its current holder from the ownership ledger.
type ProofView struct {
	ProofRecord
	Holder id.Identity `json:"holder"`
}

// Verification is the result of a fingerprint-keyed verify call. A missing
// fingerprint yields the zero value: not found, id 0, inactive.
type Verification struct {
	Exists bool       `json:"exists"`
	ID     id.ProofID `json:"id"`
	Active bool       `json:"active"`
}

// MintRequest carries the caller-supplied mint arguments. The issuer is not
// part of it; it is always the authenticated caller.
type MintRequest struct {
	To              string
	Fingerprint     string
	ContentURI      string
	DocumentType    string
	Title           string
	LockImmediately bool
}
