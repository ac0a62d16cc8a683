package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrHeld is returned when another holder owns the key.
var ErrHeld = errors.New("lease held by another worker")

// Locker hands out exclusive, expiring leases. Release only succeeds for the token that
// acquired the lease, so an expired holder cannot drop a successor's lease.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, l *Lease) error
}

type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

func BotKey(botID uint64) string {
	return fmt.Sprintf("ezpip:lease:bot:%d", botID)
}

func TaskKey(name string) string {
	return "ezpip:lease:task:" + name
}

func newToken() string {
	return uuid.NewString()
}

// With runs fn while holding key. ErrHeld is returned untouched when the lease is busy.
func With(ctx context.Context, locker Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	l, err := locker.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		// release on a fresh context so a cancelled caller still frees the key
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = locker.Release(rctx, l)
	}()
	return fn(ctx)
}

type heldKey struct{ key string }

// Held reports whether ctx was derived inside Wait for key.
func Held(ctx context.Context, key string) bool {
	v, _ := ctx.Value(heldKey{key}).(bool)
	return v
}

// Wait is With for callers that must not give up on a busy key: it retries until wait has
// elapsed. The context handed to fn carries the key, so a nested Wait on the same key runs
// fn directly instead of blocking on its own lease.
func Wait(ctx context.Context, locker Locker, key string, ttl, wait time.Duration, fn func(ctx context.Context) error) error {
	if locker == nil || Held(ctx, key) {
		return fn(ctx)
	}
	inner := func(ctx context.Context) error {
		return fn(context.WithValue(ctx, heldKey{key}, true))
	}
	deadline := time.Now().Add(wait)
	for {
		err := With(ctx, locker, key, ttl, inner)
		if !errors.Is(err, ErrHeld) || time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
