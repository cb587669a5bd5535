// Package store is the Postgres persistence layer. It implements
// importer.Store on top of pgx: plain connection-pool queries by default,
// transactional views through WithTx, and per-product advisory locks
// through WithProductLock.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ouestoffice/catalog/internal/importer"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements importer.Store. The zero value is not usable; build
// one with New.
type Postgres struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ importer.Store = (*Postgres)(nil)

// New wraps a connection pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// db returns the active querier: the enclosing transaction when inside
// WithTx, the pool otherwise.
func (p *Postgres) db() querier {
	if p.tx != nil {
		return p.tx
	}
	return p.pool
}

// WithTx runs fn against a transactional view. An error from fn rolls the
// whole transaction back. Nested calls open a savepoint inside the
// enclosing transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(importer.Store) error) error {
	var tx pgx.Tx
	var err error
	if p.tx != nil {
		tx, err = p.tx.Begin(ctx)
	} else {
		tx, err = p.pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Postgres{pool: p.pool, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// WithProductLock runs fn in a transaction holding the product's advisory
// lock, serializing it against other writers of the same product. The lock
// releases with the transaction.
func (p *Postgres) WithProductLock(ctx context.Context, productID int64, fn func(importer.Store) error) error {
	return p.WithTx(ctx, func(s importer.Store) error {
		tx := s.(*Postgres)
		if _, err := tx.db().Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, productID); err != nil {
			return fmt.Errorf("acquire product lock %d: %w", productID, err)
		}
		return fn(s)
	})
}
