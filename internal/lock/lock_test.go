package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLocker_ExcludesConcurrentHolders(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	release, err := l.Acquire(ctx, "run", time.Minute)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if _, err := l.Acquire(ctx, "run", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if _, err := l.Acquire(ctx, "other", time.Minute); err != nil {
		t.Fatalf("expected independent key to be free, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := l.Acquire(ctx, "run", time.Minute); err != nil {
		t.Fatalf("expected lock to be free after release, got %v", err)
	}
}

func TestLocalLocker_ExpiredLeaseCanBeTaken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	staleRelease, err := l.Acquire(ctx, "run", time.Minute)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := l.Acquire(ctx, "run", time.Minute); err != nil {
		t.Fatalf("expected expired lease to be taken over, got %v", err)
	}

	// The stale holder must not drop the new lease.
	_ = staleRelease(ctx)
	if _, err := l.Acquire(ctx, "run", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected new lease to survive stale release, got %v", err)
	}
}
