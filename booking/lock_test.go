package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SameKeyExcludes(t *testing.T) {
	m := NewKeyedMutex()
	key := SlotKey{AgencyID: 1, Day: NewDay(2026, time.March, 2)}

	release, err := m.Lock(context.Background(), key)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := m.Lock(context.Background(), key)
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(30 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}

func TestKeyedMutex_DifferentKeysDoNotContend(t *testing.T) {
	m := NewKeyedMutex()
	d := NewDay(2026, time.March, 2)

	r1, err := m.Lock(context.Background(), SlotKey{AgencyID: 1, Day: d})
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r2, err := m.Lock(ctx, SlotKey{AgencyID: 1, Day: d.AddDays(1)})
	require.NoError(t, err)
	r2()
	r3, err := m.Lock(ctx, SlotKey{AgencyID: 2, Day: d})
	require.NoError(t, err)
	r3()
}

func TestKeyedMutex_CancelledWaiterCleansUp(t *testing.T) {
	m := NewKeyedMutex()
	key := SlotKey{AgencyID: 1, Day: NewDay(2026, time.March, 2)}

	release, err := m.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Lock(ctx, key)
	assert.ErrorIs(t, err, context.Canceled)

	release()
	release() // second call is a no-op
	assert.Equal(t, 0, m.held())
}

func TestSlotKey_String(t *testing.T) {
	key := SlotKey{AgencyID: 12, Day: NewDay(2026, time.March, 2)}
	assert.Equal(t, "slot:12:20260302", key.String())
}
