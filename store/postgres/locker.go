package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/agency-booking/booking"
)

// AdvisoryLocker is a booking.SlotLocker backed by session-level Postgres
// advisory locks, so every instance sharing the database serializes on the
// same agency-day. Each held slot pins one pool connection until release.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

func (l *AdvisoryLocker) Lock(ctx context.Context, key booking.SlotKey) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for %s: %w", key, err)
	}

	// pgx cancels the backend query when ctx ends, so a blocked waiter
	// gives up at the caller's deadline.
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, key.String()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Unlock on a fresh context: the caller's may already be done.
			if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, key.String()); err != nil {
				// A connection that still holds the lock must not go back to the pool.
				conn.Conn().Close(context.Background())
			}
			conn.Release()
		})
	}, nil
}

var _ booking.SlotLocker = (*AdvisoryLocker)(nil)
