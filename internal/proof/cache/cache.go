// Package cache memoizes fingerprint to identifier lookups. A fingerprint is
// bound to its identifier forever once a mint commits, so positive results
// can be cached without invalidation. Misses are never cached because the
// fingerprint may be minted later. Record flags such as active are not
// cached here at all.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	id "attest/pkg/domain"
	"attest/pkg/platform/circuit"
	"attest/pkg/platform/sentinel"
)

const keyPrefix = "attest:fp:"

// Resolver looks up the identifier bound to a fingerprint. The proof stores
// implement it; sentinel.ErrNotFound means the fingerprint was never claimed.
type Resolver interface {
	ResolveFingerprint(ctx context.Context, fingerprint string) (id.ProofID, error)
}

// Metrics records lookups by tier and result.
type Metrics interface {
	IncCacheLookup(tier, result string)
}

// FingerprintCache fronts a Resolver with an in-process LRU and, when a
// Redis client is configured, a shared Redis tier.
type FingerprintCache struct {
	next    Resolver
	local   *lru.Cache[string, id.ProofID]
	redis   *redis.Client
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics Metrics
}

type Option func(*FingerprintCache)

// WithRedis adds the shared tier. A zero ttl keeps entries until Redis evicts them.
func WithRedis(client *redis.Client, ttl time.Duration) Option {
	return func(c *FingerprintCache) {
		c.redis = client
		c.ttl = ttl
	}
}

// WithBreaker replaces the default Redis circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *FingerprintCache) {
		c.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *FingerprintCache) {
		c.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *FingerprintCache) {
		c.metrics = m
	}
}

// New builds a cache holding up to size local entries.
func New(next Resolver, size int, opts ...Option) (*FingerprintCache, error) {
	local, err := lru.New[string, id.ProofID](size)
	if err != nil {
		return nil, err
	}
	c := &FingerprintCache{
		next:    next,
		local:   local,
		breaker: circuit.New("fingerprint-redis"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ResolveFingerprint checks the local tier, then Redis, then the store.
// Redis failures degrade to a store lookup. While the Redis breaker is open,
// reads skip Redis and only the write-behind still probes it.
func (c *FingerprintCache) ResolveFingerprint(ctx context.Context, fingerprint string) (id.ProofID, error) {
	if proofID, ok := c.local.Get(fingerprint); ok {
		c.record("local", "hit")
		return proofID, nil
	}
	c.record("local", "miss")

	if c.redis != nil && !c.breaker.IsOpen() {
		if proofID, ok := c.readRedis(ctx, fingerprint); ok {
			c.local.Add(fingerprint, proofID)
			return proofID, nil
		}
	}

	proofID, err := c.next.ResolveFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			c.record("store", "miss")
		}
		return 0, err
	}
	c.record("store", "hit")
	c.local.Add(fingerprint, proofID)

	if c.redis != nil {
		err := c.redis.Set(ctx, keyPrefix+fingerprint, proofID.String(), c.ttl).Err()
		c.observeRedis(ctx, err)
		if err != nil {
			c.logger.WarnContext(ctx, "fingerprint cache write failed", "error", err)
		}
	}
	return proofID, nil
}

func (c *FingerprintCache) readRedis(ctx context.Context, fingerprint string) (id.ProofID, bool) {
	raw, err := c.redis.Get(ctx, keyPrefix+fingerprint).Result()
	switch {
	case err == nil:
		c.observeRedis(ctx, nil)
		if parsed, perr := strconv.ParseUint(raw, 10, 64); perr == nil && parsed != 0 {
			c.record("redis", "hit")
			return id.ProofID(parsed), true
		}
		c.logger.WarnContext(ctx, "discarding malformed cached fingerprint entry", "value", raw)
	case errors.Is(err, redis.Nil):
		c.observeRedis(ctx, nil)
		c.record("redis", "miss")
	default:
		c.observeRedis(ctx, err)
		c.logger.WarnContext(ctx, "fingerprint cache read failed", "error", err)
	}
	return 0, false
}

// observeRedis feeds a Redis outcome to the breaker and logs transitions.
func (c *FingerprintCache) observeRedis(ctx context.Context, err error) {
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "fingerprint cache redis tier disabled", "breaker", c.breaker.Name())
		}
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "fingerprint cache redis tier restored", "breaker", c.breaker.Name())
	}
}

// Len reports the number of entries in the local tier.
func (c *FingerprintCache) Len() int {
	return c.local.Len()
}

func (c *FingerprintCache) record(tier, result string) {
	if c.metrics != nil {
		c.metrics.IncCacheLookup(tier, result)
	}
}
