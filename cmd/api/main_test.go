package main

import (
	"context"
	"testing"
	"time"

	"github.com/punchamoorthee/bizfin/internal/config"
	"github.com/punchamoorthee/bizfin/internal/lock"
	"github.com/punchamoorthee/bizfin/internal/store"
	"github.com/rs/zerolog"
)

func TestNewLocker_FallsBackToLocalLock(t *testing.T) {
	locker, closeLocker := newLocker(context.Background(), &config.Config{}, zerolog.Nop())
	defer closeLocker()

	if _, ok := locker.(*lock.LocalLocker); !ok {
		t.Fatalf("expected a local locker without REDIS_URL, got %T", locker)
	}
	release, err := locker.Acquire(context.Background(), "run", time.Minute)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	_ = release(context.Background())
}

func TestRecordStore_AcceptsMemoryStore(t *testing.T) {
	var records recordStore = store.NewMemoryStore()
	if records == nil {
		t.Fatal("expected memory store to serve as the record store")
	}
}
