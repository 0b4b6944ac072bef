package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	id "attest/pkg/domain"
	strs "attest/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr     string
	LogLevel string

	// RegistryOwner may manage every record alongside its issuer.
	RegistryOwner id.Identity

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// DatabaseURL selects the Postgres backend; empty runs fully in memory.
	DatabaseURL string
	Database    DatabaseConfig

	Redis RedisConfig
	Kafka KafkaConfig

	// FingerprintCacheSize bounds the in-process fingerprint cache.
	FingerprintCacheSize int
	// FingerprintCacheTTL is the Redis TTL for cached fingerprint mappings.
	FingerprintCacheTTL time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	// VerificationBuffer sizes the async queue for verification events.
	VerificationBuffer int

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the connection pool settings.
type DatabaseConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// RedisConfig holds the Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the event stream settings. No brokers disables relaying.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from ATTEST_* environment variables so main
// stays lean. Malformed numeric or duration values are reported, not ignored.
func FromEnv() (Server, error) {
	e := envReader{}
	cfg := Server{
		Addr:          e.str("ATTEST_ADDR", ":8080"),
		LogLevel:      e.str("ATTEST_LOG_LEVEL", "info"),
		JWTSigningKey: e.str("ATTEST_JWT_SIGNING_KEY", devSigningKey),
		JWTIssuer:     e.str("ATTEST_JWT_ISSUER", "attest"),
		JWTAudience:   e.str("ATTEST_JWT_AUDIENCE", "attest-api"),
		DatabaseURL:   e.str("ATTEST_DATABASE_URL", ""),
		Database: DatabaseConfig{
			MaxOpenConns:    e.integer("ATTEST_DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    e.integer("ATTEST_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("ATTEST_DB_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       e.duration("ATTEST_DB_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          e.str("ATTEST_REDIS_URL", ""),
			PoolSize:     e.integer("ATTEST_REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("ATTEST_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("ATTEST_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("ATTEST_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("ATTEST_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           e.list("ATTEST_KAFKA_BROKERS"),
			Topic:             e.str("ATTEST_KAFKA_TOPIC", "attest.proof-events"),
			ClientID:          e.str("ATTEST_KAFKA_CLIENT_ID", "attest"),
			Partitions:        int32(e.integer("ATTEST_KAFKA_PARTITIONS", 3)),
			ReplicationFactor: int16(e.integer("ATTEST_KAFKA_REPLICATION_FACTOR", 1)),
		},
		FingerprintCacheSize: e.integer("ATTEST_FINGERPRINT_CACHE_SIZE", 10000),
		FingerprintCacheTTL:  e.duration("ATTEST_FINGERPRINT_CACHE_TTL", 24*time.Hour),
		OutboxPollInterval:   e.duration("ATTEST_OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:      e.integer("ATTEST_OUTBOX_BATCH_SIZE", 100),
		VerificationBuffer:   e.integer("ATTEST_VERIFICATION_BUFFER", 1024),
		RequestTimeout:       e.duration("ATTEST_REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:      e.duration("ATTEST_SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	if owner := e.str("ATTEST_REGISTRY_OWNER", ""); owner != "" {
		parsed, err := id.ParseIdentity(owner)
		if err != nil {
			e.fail("ATTEST_REGISTRY_OWNER", err)
		}
		cfg.RegistryOwner = parsed
	}

	if e.err != nil {
		return Server{}, e.err
	}
	return cfg, nil
}

// envReader collects the first parse failure so FromEnv can read every
// variable in one pass.
type envReader struct {
	err error
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("config %s: %w", key, err)
	}
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) list(key string) []string {
	return strs.SplitList(os.Getenv(key), ",")
}
