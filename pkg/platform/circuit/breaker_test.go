package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome int

const (
	fail outcome = iota
	succeed
)

func record(b *Breaker, outcomes ...outcome) StateChange {
	var last StateChange
	for _, o := range outcomes {
		if o == fail {
			_, last = b.RecordFailure()
		} else {
			_, last = b.RecordSuccess()
		}
	}
	return last
}

func TestNewDefaults(t *testing.T) {
	b := New("fingerprint-redis")
	assert.Equal(t, "fingerprint-redis", b.Name())
	assert.Equal(t, StateClosed, b.State())

	record(b, fail, fail, fail, fail)
	assert.False(t, b.IsOpen(), "default threshold is five failures")
	record(b, fail)
	assert.True(t, b.IsOpen())

	record(b, succeed, succeed)
	assert.True(t, b.IsOpen(), "default recovery needs three successes")
	record(b, succeed)
	assert.False(t, b.IsOpen())
}

func TestNonPositiveThresholdsIgnored(t *testing.T) {
	b := New("x", WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, defaultFailureThreshold, b.failureThreshold)
	assert.Equal(t, defaultSuccessThreshold, b.successThreshold)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []outcome
		wantOpen bool
		wantLast StateChange
	}{
		{
			name:     "below failure threshold stays closed",
			outcomes: []outcome{fail},
			wantOpen: false,
		},
		{
			name:     "threshold failure opens",
			outcomes: []outcome{fail, fail},
			wantOpen: true,
			wantLast: StateChange{Opened: true},
		},
		{
			name:     "success between failures resets the streak",
			outcomes: []outcome{fail, succeed, fail},
			wantOpen: false,
		},
		{
			name:     "failures while open report no change",
			outcomes: []outcome{fail, fail, fail},
			wantOpen: true,
		},
		{
			name:     "partial recovery keeps the circuit open",
			outcomes: []outcome{fail, fail, succeed},
			wantOpen: true,
		},
		{
			name:     "a failure during recovery restarts it",
			outcomes: []outcome{fail, fail, succeed, fail, succeed},
			wantOpen: true,
		},
		{
			name:     "enough successes close",
			outcomes: []outcome{fail, fail, succeed, succeed},
			wantOpen: false,
			wantLast: StateChange{Closed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("x", WithFailureThreshold(2), WithSuccessThreshold(2))
			last := record(b, tt.outcomes...)
			assert.Equal(t, tt.wantOpen, b.IsOpen())
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestRecordResults(t *testing.T) {
	b := New("x", WithFailureThreshold(1), WithSuccessThreshold(1))

	usePrimary, _ := b.RecordSuccess()
	assert.True(t, usePrimary)

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, _ = b.RecordFailure()
	assert.True(t, useFallback)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
}

func TestReset(t *testing.T) {
	b := New("x", WithFailureThreshold(1), WithSuccessThreshold(5))
	record(b, fail)
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())

	_, change := b.RecordFailure()
	assert.True(t, change.Opened, "counters start over after reset")
}

func TestConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("x", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.True(t, b.IsOpen())
	assert.Equal(t, 1, opened)
}
