package booking

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// SLOT LOCKING - Mutual exclusion per (agency, day)
// =============================================================================

// SlotKey identifies the critical section guarding one agency-day.
type SlotKey struct {
	AgencyID AgencyID
	Day      Day
}

func (k SlotKey) String() string { return fmt.Sprintf("slot:%d:%s", k.AgencyID, k.Day.Compact()) }

// SlotLocker serializes count-then-write sequences on the same agency-day.
// Lock blocks until the slot is held or ctx ends. The returned release must
// be called exactly once.
type SlotLocker interface {
	Lock(ctx context.Context, key SlotKey) (release func(), err error)
}

// KeyedMutex is an in-process SlotLocker. Unrelated keys never contend.
// Sufficient for a single-instance deployment; see store/redislock and
// store/postgres for cross-process lockers.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slotLock
}

type slotLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slotLock)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key SlotKey) (func(), error) {
	k := key.String()

	m.mu.Lock()
	l, ok := m.slots[k]
	if !ok {
		l = &slotLock{sem: make(chan struct{}, 1)}
		m.slots[k] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.drop(k, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			m.drop(k, l)
		})
	}, nil
}

func (m *KeyedMutex) drop(k string, l *slotLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.slots, k)
	}
}

// held reports how many keys currently have waiters or holders.
func (m *KeyedMutex) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// noLock is used when the caller opts out of locking (pure allocation).
type noLock struct{}

func (noLock) Lock(context.Context, SlotKey) (func(), error) { return func() {}, nil }
