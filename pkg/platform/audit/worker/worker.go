// Package worker relays committed outbox entries to the event stream.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"attest/internal/platform/kafka"
	"attest/pkg/platform/audit/store/postgres"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
	defaultMaxRetries   = 5
	defaultRetryBase    = 200 * time.Millisecond
)

// Outbox claims a batch of unpublished entries, hands them to publish and
// marks them published only if publish succeeds.
type Outbox interface {
	ProcessBatch(ctx context.Context, limit int, publish func(ctx context.Context, entries []postgres.Entry) error) (int, error)
}

// Producer delivers keyed messages to the stream.
type Producer interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Metrics receives relay counters.
type Metrics interface {
	IncOutboxPublished(n int)
	IncOutboxFailure()
}

// Worker polls the outbox and publishes entries in commit order. Delivery is
// at least once: a crash between produce and mark republishes the batch.
type Worker struct {
	outbox    Outbox
	producer  Producer
	logger    *slog.Logger
	metrics   Metrics
	batchSize int
	interval  time.Duration
	retries   uint64
	retryBase time.Duration
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithRetry bounds the exponential backoff applied to one batch.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(w *Worker) {
		w.retries = maxRetries
		if base > 0 {
			w.retryBase = base
		}
	}
}

func NewWorker(outbox Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultPollInterval,
		retries:   defaultMaxRetries,
		retryBase: defaultRetryBase,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// another poll; a partial or empty one waits for the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		n, err := w.RelayOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		}
		if err == nil && n == w.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes at most one batch, retrying with exponential backoff.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	backoff := retry.WithMaxRetries(w.retries, retry.NewExponential(w.retryBase))

	var published int
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := w.outbox.ProcessBatch(ctx, w.batchSize, w.publish)
		if err != nil {
			if w.metrics != nil {
				w.metrics.IncOutboxFailure()
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logger.WarnContext(ctx, "outbox batch failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		published = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 && w.metrics != nil {
		w.metrics.IncOutboxPublished(published)
	}
	return published, nil
}

func (w *Worker) publish(ctx context.Context, entries []postgres.Entry) error {
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.Key),
			Value:   e.Payload,
			Headers: map[string]string{"event_type": e.EventType},
		})
	}
	return w.producer.Publish(ctx, msgs...)
}
