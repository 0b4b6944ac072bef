package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attest/pkg/domain-errors"
)

func TestSumKnownVectors(t *testing.T) {
	cases := []struct {
		alg  Algorithm
		want string
	}{
		{SHA256, "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{SHA3256, "0xa7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"},
		{Keccak256, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{BLAKE2b256, "0x0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"},
	}
	for _, tc := range cases {
		t.Run(string(tc.alg), func(t *testing.T) {
			got, err := Sum(tc.alg, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			streamed, err := SumReader(tc.alg, strings.NewReader(""))
			require.NoError(t, err)
			assert.Equal(t, got, streamed)
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, Default, alg)

	alg, err = ParseAlgorithm(" Keccak256 ")
	require.NoError(t, err)
	assert.Equal(t, Keccak256, alg)

	_, err = ParseAlgorithm("md5")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAlgorithms(t *testing.T) {
	assert.Equal(t, []string{"blake2b-256", "keccak256", "sha256", "sha3-256"}, Algorithms())
}

func TestDistinctInputsDiffer(t *testing.T) {
	a, err := Sum(SHA256, []byte("diploma-a"))
	require.NoError(t, err)
	b, err := Sum(SHA256, []byte("diploma-b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
