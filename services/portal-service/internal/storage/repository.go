package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/healthband/portal/libs/db"
	"github.com/healthband/portal/services/portal-service/internal/booking"
	"github.com/healthband/portal/services/portal-service/internal/outbox"
)

// Repository is the Postgres implementation of booking.Store.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool, outbox: outbox.NewRepository(pool)}
}

func (r *Repository) Begin(ctx context.Context) (booking.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) InsertEvent(ctx context.Context, tx booking.Tx, evt outbox.Event) error {
	return r.outbox.Insert(ctx, pgtx(tx), evt)
}

// pgtx unwraps the transaction handle handed out by Begin.
func pgtx(tx booking.Tx) pgx.Tx {
	t, ok := tx.(pgx.Tx)
	if !ok {
		panic(fmt.Sprintf("storage: unexpected tx type %T", tx))
	}
	return t
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
