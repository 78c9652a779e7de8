package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX matches the query methods shared by *pgxpool.Pool and pgx.Tx, so a
// repository method can run against the pool or inside a caller-owned
// transaction. This also allows mocking the database in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Tx is the transaction handle handed out by Pool.Begin.
type Tx interface {
	DBTX
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool is the subset of *pgxpool.Pool the repositories need.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (Tx, error)
}

type pgxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type wrappedPool struct {
	pgxBeginner
}

func (p wrappedPool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pgxBeginner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Wrap adapts *pgxpool.Pool (or a compatible mock pool) to the Pool interface.
func Wrap(p pgxBeginner) Pool {
	return wrappedPool{p}
}

// Connect opens a pgx pool against the given DSN and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}
