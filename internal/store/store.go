// Package store is the persistence gateway: a pooled Postgres client plus
// the idempotent upsert/query operations every other component depends on.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mev-engine/evm-arb-engine/internal/retry"
)

//go:embed schema.sql
var schemaSQL string

// Executor is satisfied by both *pgxpool.Pool and pgx.Tx, so query helpers
// can run unmodified inside or outside a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig sizes the connection pool. Defaults match spec.md §4.9.
type PoolConfig struct {
	MinConns        int32
	MaxConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the spec.md §4.9 default sizing (min 5, max 20).
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:        5,
		MaxConns:        20,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Store wraps a pgxpool.Pool with the schema bootstrap and transaction
// plumbing every table-specific file in this package relies on.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New opens a connection pool against dsn, retrying the initial connect
// with backoff, then bootstraps the schema idempotently.
func New(ctx context.Context, dsn string, cfg PoolConfig, logger *zap.Logger) (*Store, error) {
	logger = logger.With(zap.String("component", "store"))

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	s := &Store{logger: logger}

	retryCfg := retry.PersistenceConfig()
	err = retry.WithBackoff(ctx, retryCfg, logger, "postgres_connect", func() error {
		pool, dialErr := pgxpool.NewWithConfig(ctx, poolCfg)
		if dialErr != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, dialErr)
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			return fmt.Errorf("%w: ping: %v", ErrPersistence, pingErr)
		}
		s.pool = pool
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.bootstrap(ctx); err != nil {
		s.pool.Close()
		return nil, err
	}

	logger.Info("store ready",
		zap.Int32("min_conns", cfg.MinConns),
		zap.Int32("max_conns", cfg.MaxConns))
	return s, nil
}

// bootstrap applies schema.sql. Every statement is CREATE ... IF NOT EXISTS,
// so running it against an already-migrated database is a no-op.
func (s *Store) bootstrap(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: schema bootstrap: %v", ErrPersistence, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// PoolSize returns the total number of connections currently in the pool.
func (s *Store) PoolSize() int32 {
	return s.pool.Stat().TotalConns()
}

// PoolFreeSize returns the number of idle connections currently available.
func (s *Store) PoolFreeSize() int32 {
	return s.pool.Stat().IdleConns()
}

type ctxKey string

const txKey ctxKey = "store_tx"

// WithTx embeds tx in ctx so GetExecutor returns it instead of the pool.
func (s *Store) WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetExecutor returns the transaction embedded in ctx, or the pool.
func (s *Store) GetExecutor(ctx context.Context) Executor {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// WithinTx runs fn inside a new transaction, committing on nil error and
// rolling back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrPersistence, err)
	}
	txCtx := s.WithTx(ctx, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx: %v", ErrPersistence, err)
	}
	return nil
}

// IsNoRows reports whether err is pgx's "no rows" sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
