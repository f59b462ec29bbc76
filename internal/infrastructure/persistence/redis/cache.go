// Package redis mirrors simulation runs into Redis.
//
// Key components:
//   - Config / NewClient: connection setup with a startup ping
//   - TranscriptStream: a shared.Sink that appends lines to a list and
//     publishes them to a per-run channel
//   - RunSummaries: small hashes describing finished runs
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     4,
		MaxRetries:   2,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Options converts the config to go-redis options.
func (c Config) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection is returned when Redis cannot be reached at startup.
	ErrConnection = errors.New("redis: connection failed")

	// ErrSerialization is returned when a line or summary cannot be encoded.
	ErrSerialization = errors.New("redis: serialization failed")

	// ErrEmptyRunID is returned when a stream is created without a run.
	ErrEmptyRunID = errors.New("redis: run id cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(cfg.Options())

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

// Key prefixes for namespacing Redis keys.
const (
	// PrefixTranscript is the prefix for per-run transcript lists.
	PrefixTranscript = "lineage:transcript:"

	// PrefixRun is the prefix for per-run summary hashes.
	PrefixRun = "lineage:run:"

	// PrefixPubSub is the prefix for pub/sub channels.
	PrefixPubSub = "lineage:pubsub:"
)

// TTLTranscript is how long a run's transcript and summary are kept.
const TTLTranscript = 24 * time.Hour

// TranscriptKey is the list holding a run's lines.
func TranscriptKey(runID string) string {
	return PrefixTranscript + runID
}

// RunKey is the hash holding a run's summary.
func RunKey(runID string) string {
	return PrefixRun + runID
}

// TranscriptChannel is the channel live lines of a run are published to.
func TranscriptChannel(runID string) string {
	return PrefixPubSub + "transcript:" + runID
}
