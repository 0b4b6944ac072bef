package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"attest/internal/platform/config"
	"attest/internal/platform/kafka"
	pgplatform "attest/internal/platform/postgres"
	"attest/internal/platform/postgres/migrations"
	redisplatform "attest/internal/platform/redis"
	"attest/internal/proof/cache"
	"attest/internal/proof/metrics"
	"attest/internal/proof/ownership"
	"attest/internal/proof/service"
	"attest/internal/proof/store"
	id "attest/pkg/domain"
	audit "attest/pkg/platform/audit"
	"attest/pkg/platform/audit/publisher"
	auditmemory "attest/pkg/platform/audit/store/memory"
	auditpostgres "attest/pkg/platform/audit/store/postgres"
	"attest/pkg/platform/audit/worker"
)

// backend is the assembled registry plus the resources main must run and close.
type backend struct {
	registry     *service.Service
	verification *publisher.Publisher
	relay        *worker.Worker
	producer     *kafka.Producer
	db           *sql.DB
	redis        *redisplatform.Client
}

type historyStore interface {
	audit.Store
	service.HistoryReader
}

// buildBackend selects Postgres when a database URL is configured and the
// in-memory stores otherwise. Redis and Kafka are optional in both modes;
// the relay only runs against Postgres since it drains the outbox table.
func buildBackend(ctx context.Context, cfg config.Server, m *metrics.Metrics, log *slog.Logger) (*backend, error) {
	b := &backend{}

	var (
		proofs    service.Store
		resolver  cache.Resolver
		ledger    service.Ledger
		tx        service.TxRunner
		events    historyStore
		outbox    *auditpostgres.Store
		storeKind string
	)

	if cfg.DatabaseURL != "" {
		db, err := pgplatform.Open(ctx, cfg.DatabaseURL, pgplatform.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		b.db = db
		if err := migrations.Apply(ctx, db); err != nil {
			b.close(log)
			return nil, err
		}
		pg := store.NewPostgres(db)
		proofs, resolver = pg, pg
		ledger = ownership.NewPostgresLedger(db)
		tx = pgplatform.NewTxRunner(db, cfg.Database.TxTimeout)
		outbox = auditpostgres.New(db)
		events = outbox
		storeKind = "postgres"
	} else {
		mem := store.NewInMemory()
		proofs, resolver = mem, mem
		ledger = ownership.NewInMemoryLedger()
		tx = store.NewSerialTx()
		events = auditmemory.NewInMemoryStore()
		storeKind = "memory"
	}

	redisClient, err := redisplatform.New(ctx, cfg.Redis)
	if err != nil {
		b.close(log)
		return nil, err
	}
	b.redis = redisClient

	cacheOpts := []cache.Option{cache.WithLogger(log), cache.WithMetrics(m)}
	if redisClient != nil {
		cacheOpts = append(cacheOpts, cache.WithRedis(redisClient.Client, cfg.FingerprintCacheTTL))
	}
	fingerprints, err := cache.New(resolver, cfg.FingerprintCacheSize, cacheOpts...)
	if err != nil {
		b.close(log)
		return nil, fmt.Errorf("fingerprint cache: %w", err)
	}

	// State-change events are appended synchronously inside the registry
	// transaction. Verifications queue behind an async buffer.
	stateEvents := publisher.NewPublisher(events, publisher.WithLogger(log), publisher.WithMetrics(m))
	b.verification = publisher.NewPublisher(events,
		publisher.WithAsyncBuffer(cfg.VerificationBuffer),
		publisher.WithLogger(log),
		publisher.WithMetrics(m),
	)

	b.registry = service.New(proofs, ledger, tx, cfg.RegistryOwner,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithFingerprintResolver(fingerprints),
		service.WithAuditPublisher(stateEvents),
		service.WithVerificationPublisher(b.verification),
		service.WithHistory(events),
		service.WithReceivers(holderNotice(log)),
	)

	if len(cfg.Kafka.Brokers) > 0 {
		if outbox == nil {
			log.WarnContext(ctx, "kafka brokers configured without a database; event relay disabled")
		} else if err := b.startRelay(ctx, cfg, outbox, m, log); err != nil {
			b.close(log)
			return nil, err
		}
	}

	log.InfoContext(ctx, "registry backend ready",
		"store", storeKind,
		"redis", redisClient != nil,
		"relay", b.relay != nil,
		"registry_owner", cfg.RegistryOwner,
	)
	return b, nil
}

func (b *backend) startRelay(ctx context.Context, cfg config.Server, outbox *auditpostgres.Store, m *metrics.Metrics, log *slog.Logger) error {
	producer, err := kafka.NewProducer(kafka.Config{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		ClientID: cfg.Kafka.ClientID,
	}, log)
	if err != nil {
		return err
	}
	b.producer = producer
	if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		return err
	}
	b.relay = worker.NewWorker(outbox, producer,
		worker.WithLogger(log),
		worker.WithMetrics(m),
		worker.WithBatchSize(cfg.OutboxBatchSize),
		worker.WithPollInterval(cfg.OutboxPollInterval),
	)
	return nil
}

// holderNotice logs each token handed to a recipient.
func holderNotice(log *slog.Logger) ownership.Receiver {
	return ownership.ReceiverFunc(func(ctx context.Context, proofID id.ProofID, to id.Identity) error {
		log.InfoContext(ctx, "proof token received",
			"proof_id", proofID,
			"holder", to,
		)
		return nil
	})
}

// health pings every configured dependency.
func (b *backend) health(ctx context.Context) error {
	var errs []error
	if b.db != nil {
		if err := b.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if b.redis != nil {
		if err := b.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if b.producer != nil {
		if err := b.producer.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	return errors.Join(errs...)
}

// close releases resources in reverse order of acquisition.
func (b *backend) close(log *slog.Logger) {
	if b.verification != nil {
		if err := b.verification.Close(); err != nil {
			log.Warn("failed to drain verification events", "error", err)
		}
	}
	if b.producer != nil {
		b.producer.Close()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
}
