// Package fingerprint computes document digests in the formats issuers
// commonly register. The registry never hashes anything itself; this package
// only serves the helper endpoint and the operator CLI.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	dErrors "attest/pkg/domain-errors"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	SHA3256    Algorithm = "sha3-256"
	Keccak256  Algorithm = "keccak256"
	BLAKE2b256 Algorithm = "blake2b-256"
)

// Default is used when no algorithm is requested.
const Default = SHA256

var constructors = map[Algorithm]func() hash.Hash{
	SHA256:    sha256.New,
	SHA3256:   sha3.New256,
	Keccak256: sha3.NewLegacyKeccak256,
	BLAKE2b256: func() hash.Hash {
		h, _ := blake2b.New256(nil) // only fails for oversized keys
		return h
	},
}

// ParseAlgorithm resolves a case-insensitive name. Empty selects Default.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default, nil
	}
	alg := Algorithm(name)
	if _, ok := constructors[alg]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported fingerprint algorithm: "+name)
	}
	return alg, nil
}

// Algorithms lists the supported names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(constructors))
	for alg := range constructors {
		names = append(names, string(alg))
	}
	sort.Strings(names)
	return names
}

// Sum digests data and returns it 0x-prefixed lower-case hex.
func Sum(alg Algorithm, data []byte) (string, error) {
	newHash, ok := constructors[alg]
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported fingerprint algorithm: "+string(alg))
	}
	h := newHash()
	h.Write(data)
	return encode(h), nil
}

// SumReader streams r through the digest.
func SumReader(alg Algorithm, r io.Reader) (string, error) {
	newHash, ok := constructors[alg]
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported fingerprint algorithm: "+string(alg))
	}
	h := newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return encode(h), nil
}

func encode(h hash.Hash) string {
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
