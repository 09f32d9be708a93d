package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queryer is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Every
// repository method takes one, so the same repository works standalone and
// inside a transaction.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner runs a function inside one database transaction: commit on nil,
// rollback on error. The per-document unit of work in the pipeline.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(q Queryer) error) error
}

type pgxTxRunner struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewTxRunner(pool *pgxpool.Pool, logger *slog.Logger) TxRunner {
	return &pgxTxRunner{pool: pool, logger: logger}
}

func (r *pgxTxRunner) RunInTx(ctx context.Context, fn func(q Queryer) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("failed to begin transaction", "error", err)
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			r.logger.Error("failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
