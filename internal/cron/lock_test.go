package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	first, err := NewRedisLock(store, "shopcore:lock:cron:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "shopcore:lock:cron:test", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release without ownership: %v", err)
	}
	if _, held := store.values["shopcore:lock:cron:test"]; !held {
		t.Fatal("non-owner release must not free the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected lock to be free after owner release")
	}
}

func TestRedisLockDefaultsTTL(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "k", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if store.ttls["k"] != defaultLockTTL {
		t.Fatalf("expected default ttl %v, got %v", defaultLockTTL, store.ttls["k"])
	}
}

func TestRedisLockWrapsStoreError(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("conn refused")
	lock, _ := NewRedisLock(store, "k", time.Minute)
	if _, err := lock.Acquire(context.Background()); !errors.Is(err, store.err) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestRedisLockTokenNamesHostAndReacquireIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lock, err := NewRedisLock(store, "shopcore:lock:cron:cycle", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if ok, err := lock.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire ok=%v err=%v", ok, err)
	}
	token := store.values["shopcore:lock:cron:cycle"]
	if !strings.HasPrefix(token, lock.host+"/") {
		t.Fatalf("expected token to start with host %q, got %q", lock.host, token)
	}
	if ok, err := lock.Acquire(ctx); err != nil || !ok {
		t.Fatalf("re-acquire by holder ok=%v err=%v", ok, err)
	}
	if store.values["shopcore:lock:cron:cycle"] != token {
		t.Fatal("re-acquire must not replace the token")
	}
}

func TestRedisLockReleaseLeavesTakenOverLock(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	// Simulate expiry followed by another replica taking the key.
	store.values["k"] = "other-host/token"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["k"] != "other-host/token" {
		t.Fatal("release must not delete a lock owned by another replica")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisLock(newMemoryStore(), "", time.Minute); err == nil {
		t.Fatal("expected error for empty key")
	}
}
