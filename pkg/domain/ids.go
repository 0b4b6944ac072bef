package domain

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "attest/pkg/domain-errors"
)

// MaxIdentityLength bounds principal strings accepted at trust boundaries.
const MaxIdentityLength = 256

// ZeroAddress is the null account; it can never issue, hold or own anything.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Identity is a principal: an issuer, a holder, a verifier or the registry
// owner. Hex account addresses are normalized to lower case so that the same
// account always compares equal.
type Identity string

// ParseIdentity validates and normalizes a principal string.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	if len(s) > MaxIdentityLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "identity contains invalid characters")
		}
	}
	if isHexAddress(s) {
		s = strings.ToLower(s)
		if s == ZeroAddress {
			return "", dErrors.New(dErrors.CodeInvalidInput, "identity must not be the zero address")
		}
	}
	return Identity(s), nil
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return false
	}
	for _, r := range s[2:] {
		if !unicode.Is(unicode.ASCII_Hex_Digit, r) {
			return false
		}
	}
	return true
}

func (i Identity) String() string { return string(i) }

// IsNil reports whether the identity is unset.
func (i Identity) IsNil() bool { return i == "" }

// ProofID identifies a proof record. Identifiers start at 1; zero means none.
type ProofID uint64

// ParseProofID parses a decimal identifier from a path or CLI argument.
func ParseProofID(s string) (ProofID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "proof id is required")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "proof id must be a positive integer")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "proof id must be a positive integer")
	}
	return ProofID(n), nil
}

func (p ProofID) String() string { return strconv.FormatUint(uint64(p), 10) }

// IsNil reports whether the identifier is unset.
func (p ProofID) IsNil() bool { return p == 0 }
