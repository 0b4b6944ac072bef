package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attest/pkg/domain-errors"
)

// TestParseIdentity_Invariants validates the parsing invariant:
// "identities are non-empty, bounded, printable and never the zero address".
func TestParseIdentity_Invariants(t *testing.T) {
	t.Run("rejects empty and blank", func(t *testing.T) {
		for _, in := range []string{"", "   ", "\t"} {
			_, err := ParseIdentity(in)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})

	t.Run("rejects zero address in any case", func(t *testing.T) {
		_, err := ParseIdentity(ZeroAddress)
		require.Error(t, err)
		_, err = ParseIdentity("0X0000000000000000000000000000000000000000")
		require.Error(t, err)
	})

	t.Run("rejects overlong and control characters", func(t *testing.T) {
		_, err := ParseIdentity(strings.Repeat("a", MaxIdentityLength+1))
		require.Error(t, err)
		_, err = ParseIdentity("issuer\x00one")
		require.Error(t, err)
		_, err = ParseIdentity("two words")
		require.Error(t, err)
	})

	t.Run("normalizes hex addresses", func(t *testing.T) {
		got, err := ParseIdentity(" 0xABCDEFabcdef0123456789abcdef0123456789AB ")
		require.NoError(t, err)
		assert.Equal(t, Identity("0xabcdefabcdef0123456789abcdef0123456789ab"), got)
	})

	t.Run("keeps non-address principals verbatim", func(t *testing.T) {
		got, err := ParseIdentity("did:example:University-1")
		require.NoError(t, err)
		assert.Equal(t, Identity("did:example:University-1"), got)
	})
}

func TestParseProofID(t *testing.T) {
	tests := []struct {
		in      string
		want    ProofID
		wantErr bool
	}{
		{in: "1", want: 1},
		{in: " 42 ", want: 42},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
		{in: "18446744073709551616", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseProofID(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, strings.TrimSpace(tt.in), got.String())
	}
}
