package postgres

import (
	"context"
	"fmt"

	"github.com/finexbank/ledger/internal/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// every read can be written once and run both inside and outside an
// atomic unit.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements ledger.Store over a pgx pool. Reads outside an
// atomic unit are promoted from the embedded reads, bound to the pool.
type Store struct {
	reads
	pool *pgxpool.Pool
}

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*pgTx)(nil)
)

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{reads: reads{q: pool}, pool: pool}
}

// WithinTx implements ledger.Store. fn runs inside one database
// transaction; any error rolls the whole unit back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("WithinTx: begin: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&pgTx{reads: reads{q: dbTx}, tx: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("WithinTx: commit: %w", err)
	}
	return nil
}

// pgTx implements ledger.Tx over a live pgx transaction.
type pgTx struct {
	reads
	tx pgx.Tx
}

// reads carries every Reader query over a querier, shared by Store
// (pool-bound) and pgTx (transaction-bound).
type reads struct {
	q querier
}
