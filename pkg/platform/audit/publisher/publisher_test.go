package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "attest/pkg/domain"
	audit "attest/pkg/platform/audit"
	"attest/pkg/platform/audit/store/memory"
)

type failingStore struct {
	memory.InMemoryStore
}

func (f *failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{ProofID: 1, Action: audit.EventProofMinted})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), id.ProofID(1))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventProofMinted, events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_SyncModeSurfacesStoreErrors(t *testing.T) {
	pub := NewPublisher(&failingStore{})
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{ProofID: 1, Action: audit.EventProofLocked})
	require.Error(t, err)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{ProofID: 4, Action: audit.EventProofVerified}))
	}
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	events, err := store.ListByProof(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))
	require.NoError(t, pub.Close())

	err := pub.Emit(context.Background(), audit.Event{ProofID: 5, Action: audit.EventProofVerified})
	require.ErrorIs(t, err, ErrClosed)

	events, err := store.ListByProof(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPublisher_EmitRacingClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(8))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{ProofID: 6, Action: audit.EventProofVerified})
			if err != nil {
				assert.True(t, errors.Is(err, ErrClosed) || errors.Is(err, ErrBufferFull), "unexpected error: %v", err)
			}
		}()
	}
	require.NoError(t, pub.Close())
	wg.Wait()
}

func TestPublisher_AsyncNeverBlocksOnStoreFailure(t *testing.T) {
	pub := NewPublisher(&failingStore{}, WithAsyncBuffer(4))
	err := pub.Emit(context.Background(), audit.Event{ProofID: 1, Action: audit.EventProofVerified})
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestPublisher_BufferFullDropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{ProofID: 2, Action: audit.EventProofVerified})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{ProofID: 9, Action: audit.EventProofRestored, Timestamp: custom}))

	events, err := pub.List(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}
