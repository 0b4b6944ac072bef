package store

import (
	"context"
	"sync"
)

// SerialTx serializes registry operations for the in-memory backend. Writes
// run one at a time; reads wait for any in-flight write so that a mint is
// never observed half applied (record stored but token or events not yet).
type SerialTx struct {
	mu sync.RWMutex
}

func NewSerialTx() *SerialTx {
	return &SerialTx{}
}

func (t *SerialTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

func (t *SerialTx) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(ctx)
}
