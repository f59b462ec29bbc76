// Package postgres stores simulation runs, their transcripts, and the domain
// event log in PostgreSQL. Persistence is optional: the simulator runs fully
// in memory unless a database URL is configured.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrConnectionClosed is returned by every call made after Close.
	ErrConnectionClosed = errors.New("postgres: connection pool is closed")

	// ErrMigrationFailed wraps the failing schema version.
	ErrMigrationFailed = errors.New("postgres: migration failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION POOL
// ══════════════════════════════════════════════════════════════════════════════

// Config describes where the transcript database lives. A run opens a handful
// of connections at most, so the pool is kept small.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// SSLMode: disable, prefer, require, verify-ca, verify-full.
	SSLMode string

	MaxConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns the settings used when only DB_HOST is given.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "lineage",
		User:            "lineage",
		SSLMode:         "prefer",
		MaxConns:        4,
		MaxConnLifetime: 30 * time.Minute,
		ConnectTimeout:  3 * time.Second,
	}
}

// DSN renders the keyword/value connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode, int(c.ConnectTimeout.Seconds()))
}

// PoolConfig parses the DSN and applies the pool limits.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = c.MaxConns
	pc.MaxConnLifetime = c.MaxConnLifetime
	return pc, nil
}

// Connection wraps a pgx pool and refuses work once closed.
type Connection struct {
	mu     sync.RWMutex
	pool   *pgxpool.Pool
	closed bool
}

// NewConnection opens a pool from cfg and pings it.
func NewConnection(ctx context.Context, cfg Config) (*Connection, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return open(ctx, pc)
}

// NewConnectionFromURL opens a pool from a postgres:// URL and pings it.
func NewConnectionFromURL(ctx context.Context, databaseURL string) (*Connection, error) {
	pc, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database url: %w", err)
	}
	if pc.MaxConns == 0 {
		pc.MaxConns = DefaultConfig().MaxConns
	}
	return open(ctx, pc)
}

func open(ctx context.Context, pc *pgxpool.Config) (*Connection, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Connection{pool: pool}, nil
}

// Close releases the pool. Calling it twice is harmless.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.pool.Close()
	}
}

// Ping checks that the database still answers.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}
	return c.pool.Ping(ctx)
}

// Begin starts a transaction; used with pgx.BeginFunc.
func (c *Connection) Begin(ctx context.Context) (pgx.Tx, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}
	return c.pool.Begin(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Execer is the write half of Querier.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// Querier is satisfied by *Connection, *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Execer
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (c *Connection) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return pgconn.CommandTag{}, ErrConnectionClosed
	}
	return c.pool.Exec(ctx, sql, args...)
}

func (c *Connection) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}
	return c.pool.Query(ctx, sql, args...)
}

func (c *Connection) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pool.QueryRow(ctx, sql, args...)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// GetMigrations lists the schema steps in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_runs_and_transcripts", UpSQL: migration001Up},
		{Version: 2, Name: "create_domain_events", UpSQL: migration002Up},
	}
}

// Migrator brings the schema up to date. Applied versions are recorded in
// schema_migrations; each step runs in its own transaction.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every step not yet recorded.
func (m *Migrator) Migrate(ctx context.Context) error {
	const track = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`
	if _, err := m.conn.Exec(ctx, track); err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		err := pgx.BeginFunc(ctx, m.conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema_migrations: %v", ErrMigrationFailed, err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("%w: scan schema_migrations: %v", ErrMigrationFailed, err)
	}

	out := make(map[int]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// IsUniqueViolation reports a 23505 unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
