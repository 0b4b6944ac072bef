package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "attest/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, audit.Event{Action: audit.EventProofMinted, ProofID: 1}))
	require.NoError(t, s.Append(ctx, audit.Event{Action: audit.EventProofMinted, ProofID: 2}))
	require.NoError(t, s.Append(ctx, audit.Event{Action: audit.EventProofRevoked, ProofID: 1}))

	byProof, err := s.ListByProof(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byProof, 2)
	assert.Equal(t, audit.EventProofMinted, byProof[0].Action)
	assert.Equal(t, audit.EventProofRevoked, byProof[1].Action)

	require.NoError(t, s.Append(ctx, audit.Event{Action: audit.EventProofRestored, ProofID: 1}))
	latest, err := s.RecentByProof(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, audit.EventProofRevoked, latest[0].Action, "oldest first")
	assert.Equal(t, audit.EventProofRestored, latest[1].Action)

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, audit.EventProofRestored, recent[0].Action, "newest first")

	all, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	s.Clear()
	assert.Empty(t, s.All())
}
