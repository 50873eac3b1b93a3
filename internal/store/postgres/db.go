// Package postgres implements the persistence layer for the ledger,
// event log, read-model projections and payout state machine (C2-C5 of
// SPEC_FULL.md) on top of pgx/v5, following the connection-pool and
// transaction shape of the teacher's internal/infrastructure/database
// package.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"payout-ledger/internal/config"
	"payout-ledger/internal/errs"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting every store
// method run either standalone or inside an in-flight transaction without
// branching on which it has.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store bundles the pool and exposes the sub-stores (accounts, ledger,
// events, projections, payouts) as methods, grounded on the teacher's
// PostgresRepository grouping pattern.
type Store struct {
	pool *pgxpool.Pool
}

// NewPool opens a pgxpool against cfg, mirroring the teacher's
// NewPostgresRepository pool-tuning knobs (max/min conns, lifetimes).
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "parse database connection string", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "open database pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(errs.KindStorageUnavailable, "ping database", err)
	}
	return pool, nil
}

// New wraps an already-opened pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Close() { s.pool.Close() }

// Ping reports database liveness for the health-check endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Atomic runs fn inside a single database transaction shared by every
// store call made through the ctx it passes to fn — the mechanism the
// payout state machine uses to commit a status change, its ledger
// transaction, its event, and its projections as one atomic unit.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, s.pool, fn)
}

type ctxKey struct{}

// WithTx runs fn inside a single database transaction, committing on a nil
// return and rolling back otherwise. Nested calls reuse the outer
// transaction rather than opening a new one, so a service method that
// itself calls WithTx composes safely when invoked from within another
// WithTx block (the projector update that must share the writing
// transaction with the event append, per spec.md §4.5).
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(ctxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, ctxKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "commit transaction", err)
	}
	return nil
}

// dbtx returns the in-flight transaction stashed in ctx by WithTx, or pool
// itself for a standalone read.
func dbtx(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := ctx.Value(ctxKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

func notFound(entity, id string) error {
	return errs.New(errs.KindNotFound, fmt.Sprintf("%s %q not found", entity, id))
}
