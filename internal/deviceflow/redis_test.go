package deviceflow

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

// newTestRedis connects to REDIS_URL or skips the test
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		t.Fatalf("parsing REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store := NewRedisStore(newTestRedis(t))

	if err := store.CheckHealth(ctx); err != nil {
		t.Fatalf("CheckHealth() error = %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	session := &Session{
		DeviceCode:      "redis-test-" + now.Format("150405.000000000"),
		UserCode:        "ABCD1234",
		VerificationURI: "https://microsoft.com/link",
		Interval:        5 * time.Second,
		ExpiresAt:       now.Add(time.Minute),
		LastPollAt:      now,
		State:           StatePending,
	}

	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	got, err := store.GetSession(ctx, session.DeviceCode)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if diff := cmp.Diff(session, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	if err := store.DeleteSession(ctx, session.DeviceCode); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	got, err = store.GetSession(ctx, session.DeviceCode)
	if err != nil || got != nil {
		t.Errorf("GetSession() after delete = %v, %v; want nil, nil", got, err)
	}
}

func TestRedisStoreRejectsExpiredSession(t *testing.T) {
	// Expiry is checked before any command reaches Redis
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	session := &Session{DeviceCode: "old", ExpiresAt: time.Now().Add(-time.Second)}

	if err := store.SaveSession(context.Background(), session); !errors.Is(err, ErrExpiredCode) {
		t.Errorf("SaveSession() error = %v, want %v", err, ErrExpiredCode)
	}
}
