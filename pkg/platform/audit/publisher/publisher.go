// Package publisher emits registry audit events to an audit.Store.
//
// In sync mode Emit returns only once the store accepted the event, so a
// failure can abort the surrounding operation (used for state changes, which
// are written inside the registry transaction). In async mode events go
// through a bounded buffer drained by a background goroutine; Emit never
// blocks on the store and drops events when the buffer is full (used for
// verification events, which must never fail a verify call).
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "attest/pkg/domain"
	audit "attest/pkg/platform/audit"
)

var (
	// ErrBufferFull is returned by an async publisher when an event was dropped.
	ErrBufferFull = errors.New("audit buffer full")
	// ErrClosed is returned by an async publisher after Close.
	ErrClosed = errors.New("audit publisher closed")
)

// Metrics receives publisher counters. Any nil-safe implementation works;
// internal/proof/metrics provides the Prometheus one.
type Metrics interface {
	IncAuditEmitted(action string)
	IncAuditDropped(action string)
	IncAuditFailed(action string)
}

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics Metrics

	// mu guards closed against sends racing Close.
	mu     sync.RWMutex
	closed bool
	buffer chan audit.Event
	wg     sync.WaitGroup
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. See the package doc for sync vs async semantics.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = event.Normalize(time.Now())

	if p.buffer == nil {
		if err := p.store.Append(ctx, event); err != nil {
			if p.metrics != nil {
				p.metrics.IncAuditFailed(string(event.Action))
			}
			return err
		}
		if p.metrics != nil {
			p.metrics.IncAuditEmitted(string(event.Action))
		}
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		if p.metrics != nil {
			p.metrics.IncAuditDropped(string(event.Action))
		}
		return ErrClosed
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.IncAuditDropped(string(event.Action))
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"proof_id", event.ProofID.String(),
			)
		}
		return ErrBufferFull
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		// detached from the request: the request may be long gone
		if err := p.store.Append(context.Background(), event); err != nil {
			if p.metrics != nil {
				p.metrics.IncAuditFailed(string(event.Action))
			}
			if p.logger != nil {
				p.logger.Error("failed to persist audit event",
					"action", event.Action,
					"proof_id", event.ProofID.String(),
					"error", err,
				)
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.IncAuditEmitted(string(event.Action))
		}
	}
}

// List returns events recorded for a proof.
func (p *Publisher) List(ctx context.Context, proofID id.ProofID) ([]audit.Event, error) {
	return p.store.ListByProof(ctx, proofID)
}

// Close drains the async buffer. Later Emit calls return ErrClosed. Safe to
// call more than once and in sync mode.
func (p *Publisher) Close() error {
	if p.buffer == nil {
		return nil
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.buffer)
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
