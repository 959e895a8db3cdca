// Package redislock implements booking.SlotLocker on Redis so several
// service instances over one database serialize on the same agency-day.
package redislock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/warp/agency-booking/booking"
)

const (
	defaultTTL   = 15 * time.Second
	defaultRetry = 25 * time.Millisecond

	// leaseMargin covers the release round trip after the caller's deadline.
	leaseMargin = 2 * time.Second
	// maxLease caps how long a crashed holder can block a day.
	maxLease = 2 * time.Minute
)

// The owner token makes release a no-op if the key expired and was taken
// by someone else in the meantime.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker holds a slot with SET NX PX. The TTL bounds how long a crashed
// holder can block a day.
type Locker struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

type Option func(*Locker)

func WithTTL(d time.Duration) Option           { return func(l *Locker) { l.ttl = d } }
func WithRetryInterval(d time.Duration) Option { return func(l *Locker) { l.retry = d } }
func WithPrefix(p string) Option               { return func(l *Locker) { l.prefix = strings.TrimSpace(p) } }

// New returns a Locker. Each lock lives for the configured TTL (15s unless
// WithTTL says otherwise), stretched to the caller's context deadline plus a
// short margin when that is later. The stretch stops at two minutes, so an
// operation whose deadline is further out than that can outlive its lock.
func New(rdb redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{rdb: rdb, prefix: "booking", ttl: defaultTTL, retry: defaultRetry}
	for _, opt := range opts {
		opt(l)
	}
	if l.ttl <= 0 {
		l.ttl = defaultTTL
	}
	if l.retry <= 0 {
		l.retry = defaultRetry
	}
	if l.prefix == "" {
		l.prefix = "booking"
	}
	return l
}

func (l *Locker) key(k booking.SlotKey) string { return l.prefix + ":" + k.String() }

// lease is the expiry for a lock taken now under ctx.
func (l *Locker) lease(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return l.ttl
	}
	need := time.Until(deadline) + leaseMargin
	if need <= l.ttl {
		return l.ttl
	}
	return min(need, max(maxLease, l.ttl))
}

// Lock polls until the slot is free or ctx ends.
func (l *Locker) Lock(ctx context.Context, k booking.SlotKey) (func(), error) {
	key := l.key(k)
	owner := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, owner, l.lease(ctx)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, owner).Err()
	}, nil
}

var _ booking.SlotLocker = (*Locker)(nil)
