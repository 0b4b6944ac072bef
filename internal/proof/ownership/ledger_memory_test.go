package ownership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "attest/pkg/domain"
	"attest/pkg/platform/sentinel"
)

func TestInMemoryLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("mint then read holder", func(t *testing.T) {
		l := NewInMemoryLedger()
		require.NoError(t, l.Mint(ctx, 1, "holder-a"))

		holder, err := l.OwnerOf(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, id.Identity("holder-a"), holder)
	})

	t.Run("refuses a second token for the same identifier", func(t *testing.T) {
		l := NewInMemoryLedger()
		require.NoError(t, l.Mint(ctx, 1, "holder-a"))
		assert.ErrorIs(t, l.Mint(ctx, 1, "holder-b"), ErrTokenExists)
	})

	t.Run("unknown token", func(t *testing.T) {
		l := NewInMemoryLedger()
		_, err := l.OwnerOf(ctx, 7)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, l.Transfer(ctx, 7, "a", "b"), sentinel.ErrNotFound)
	})

	t.Run("only the holder transfers", func(t *testing.T) {
		l := NewInMemoryLedger()
		require.NoError(t, l.Mint(ctx, 1, "holder-a"))

		assert.ErrorIs(t, l.Transfer(ctx, 1, "issuer", "holder-c"), ErrNotHolder)
		require.NoError(t, l.Transfer(ctx, 1, "holder-a", "holder-b"))

		holder, err := l.OwnerOf(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, id.Identity("holder-b"), holder)
	})
}

func TestReceiverFunc(t *testing.T) {
	var got id.ProofID
	r := ReceiverFunc(func(_ context.Context, proofID id.ProofID, _ id.Identity) error {
		got = proofID
		return nil
	})
	require.NoError(t, r.OnProofReceived(context.Background(), 9, "x"))
	assert.Equal(t, id.ProofID(9), got)
}
