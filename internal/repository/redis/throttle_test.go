package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestThrottle(t *testing.T) (*ThrottleStore, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewThrottleStore(client), srv
}

func TestThrottleAllowsWithinLimit(t *testing.T) {
	store, _ := newTestThrottle(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allow, _, err := store.Allow(ctx, "reset:a@example.com", 3, time.Hour)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allow {
			t.Fatalf("request %d denied within limit", i+1)
		}
	}
}

func TestThrottleDeniesBeyondLimit(t *testing.T) {
	store, _ := newTestThrottle(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := store.Allow(ctx, "reset:a@example.com", 3, time.Hour); err != nil {
			t.Fatalf("Allow: %v", err)
		}
	}

	allow, retryAfter, err := store.Allow(ctx, "reset:a@example.com", 3, time.Hour)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allow {
		t.Fatal("fourth request allowed, want denial")
	}
	if retryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want positive", retryAfter)
	}
}

func TestThrottleWindowResets(t *testing.T) {
	store, srv := newTestThrottle(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, _ = store.Allow(ctx, "reset:a@example.com", 3, time.Minute)
	}

	srv.FastForward(2 * time.Minute)

	allow, _, err := store.Allow(ctx, "reset:a@example.com", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allow {
		t.Fatal("request denied after the window elapsed")
	}
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	store, _ := newTestThrottle(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, _ = store.Allow(ctx, "reset:a@example.com", 3, time.Hour)
	}

	allow, _, err := store.Allow(ctx, "reset:b@example.com", 3, time.Hour)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allow {
		t.Fatal("throttle leaked across keys")
	}
}
