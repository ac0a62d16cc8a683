package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerExclusive(t *testing.T) {
	m := NewMemoryLocker()
	ctx := context.Background()

	l, err := m.Acquire(ctx, BotKey(7), time.Minute)
	require.NoError(t, err)
	_, err = m.Acquire(ctx, BotKey(7), time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	_, err = m.Acquire(ctx, BotKey(8), time.Minute)
	assert.NoError(t, err)

	require.NoError(t, m.Release(ctx, l))
	_, err = m.Acquire(ctx, BotKey(7), time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLockerExpiryAndStaleRelease(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemoryLocker()
	m.Now = func() time.Time { return now }
	ctx := context.Background()

	first, err := m.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	second, err := m.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// the expired holder must not free its successor
	require.NoError(t, m.Release(ctx, first))
	_, err = m.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, m.Release(ctx, second))
	_, err = m.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
}

func TestWithReleasesAfterRun(t *testing.T) {
	m := NewMemoryLocker()
	ctx := context.Background()
	boom := errors.New("boom")

	err := With(ctx, m, TaskKey("reconcile"), time.Minute, func(ctx context.Context) error {
		err := With(ctx, m, TaskKey("reconcile"), time.Minute, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrHeld)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ran := false
	err = With(ctx, m, TaskKey("reconcile"), time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWaitIsReentrantForItsKey(t *testing.T) {
	m := NewMemoryLocker()
	ctx := context.Background()
	key := BotKey(3)

	depth := 0
	err := Wait(ctx, m, key, time.Minute, 50*time.Millisecond, func(ctx context.Context) error {
		assert.True(t, Held(ctx, key))
		assert.False(t, Held(ctx, BotKey(4)))
		return Wait(ctx, m, key, time.Minute, 50*time.Millisecond, func(context.Context) error {
			depth++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	// a caller without the key in its context still waits and then gives up
	l, err := m.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	err = Wait(ctx, m, key, time.Minute, 50*time.Millisecond, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrHeld)
	require.NoError(t, m.Release(ctx, l))
}
