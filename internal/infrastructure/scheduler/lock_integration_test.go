//go:build integration

package scheduler

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newIntegrationLocker(t *testing.T) *RedisLocker {
	t.Helper()

	redisURL := strings.TrimSpace(os.Getenv("TEST_REDIS_URL"))
	if redisURL == "" {
		t.Skip("set TEST_REDIS_URL to run redis integration tests")
	}
	client, err := NewRedisClient(redisURL)
	if err != nil {
		t.Fatalf("invalid TEST_REDIS_URL: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewRedisLocker(client, "integration")
}

func TestRedisLocker_Integration(t *testing.T) {
	locker := newIntegrationLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := lockKey("sweep", "it-"+uuid.NewString())
	ttl := 300 * time.Millisecond

	release, acquired, err := locker.Acquire(ctx, key, ttl)
	if err != nil || !acquired {
		t.Fatalf("expected first acquire to succeed, got acquired=%v err=%v", acquired, err)
	}

	// Outlive the TTL several times; renewal must keep the key ours.
	time.Sleep(4 * ttl)
	if _, acquired, err := locker.Acquire(ctx, key, ttl); err != nil || acquired {
		t.Fatalf("expected held lock to block a second worker, got acquired=%v err=%v", acquired, err)
	}

	release()
	release()
	if exists, err := locker.client.Exists(ctx, key).Result(); err != nil || exists != 0 {
		t.Fatalf("expected key removed on release, got exists=%d err=%v", exists, err)
	}

	nextRelease, acquired, err := locker.Acquire(ctx, key, ttl)
	if err != nil || !acquired {
		t.Fatalf("expected reacquire after release, got acquired=%v err=%v", acquired, err)
	}
	defer nextRelease()
}

func TestRedisLocker_ReleaseLeavesOtherHoldersKey_Integration(t *testing.T) {
	locker := newIntegrationLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := lockKey("reconcile", "it-"+uuid.NewString())
	release, acquired, err := locker.Acquire(ctx, key, time.Minute)
	if err != nil || !acquired {
		t.Fatalf("expected acquire to succeed, got acquired=%v err=%v", acquired, err)
	}

	// Simulate expiry followed by another worker taking the key.
	if err := locker.client.Set(ctx, key, "other-worker:token", time.Minute).Err(); err != nil {
		t.Fatalf("failed to overwrite lock: %v", err)
	}
	release()

	value, err := locker.client.Get(ctx, key).Result()
	if err != nil || value != "other-worker:token" {
		t.Fatalf("expected other worker's lock kept, got value=%q err=%v", value, err)
	}
	_ = locker.client.Del(ctx, key).Err()
}
