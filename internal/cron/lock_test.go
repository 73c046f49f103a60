package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/angelmondragon/retaildesk/pkg/redis"
)

func TestRedisLockIsExclusiveAndOwnerReleased(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redisclient.Wrap(raw)
	ctx := context.Background()

	first, err := NewRedisLock(client, client.LockKey("jobs"), time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	second, _ := NewRedisLock(client, client.LockKey("jobs"), time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if !mr.Exists(client.LockKey("jobs")) {
		t.Fatal("non-owner release must not delete the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected lock to be free after owner release")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redisclient.Wrap(raw)
	ctx := context.Background()

	lock, _ := NewRedisLock(client, client.LockKey("jobs"), time.Second)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	mr.FastForward(2 * time.Second)
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after expiry: %v", err)
	}
}

func TestRedisLockExpiredOwnerLeavesNewHolderAlone(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redisclient.Wrap(raw)
	ctx := context.Background()
	key := client.LockKey("jobs")

	stale, _ := NewRedisLock(client, key, time.Second)
	fresh, _ := NewRedisLock(client, key, time.Minute)
	if ok, _ := stale.Acquire(ctx); !ok {
		t.Fatal("expected stale acquire")
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := fresh.Acquire(ctx); !ok {
		t.Fatal("expected fresh acquire after expiry")
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("stale owner deleted the new holder's lock")
	}
}
