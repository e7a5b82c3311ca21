package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HonoraryIndians/axon-sub001/internal/service"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// It is satisfied by *pgxpool.Pool and by pgx.Tx, which keeps repositories mockable.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// wrapErr adds op to err and tags failures worth retrying with
// service.ErrTransientStore.
func wrapErr(op string, err error) error {
	if database.IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, service.ErrTransientStore, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
