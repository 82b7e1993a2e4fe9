// Package refreshlock serializes credential refreshes per account across
// server instances with a Redis lease. The same leases keep concurrent polls
// of one device code from reaching the provider together.
package refreshlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPrefix namespaces refresh leases
	DefaultPrefix = "refresh:"

	// DefaultTTL bounds how long a crashed holder can block an account
	DefaultTTL = 30 * time.Second

	tokenBytes = 16
)

// ErrLocked indicates another refresh for the account is in flight
var ErrLocked = errors.New("refresh already in progress")

// Release deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out per-account leases
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Option configures a Locker
type Option func(*Locker)

// WithPrefix namespaces the Locker's keys
func WithPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// New creates a Locker. A non-positive ttl uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration, opts ...Option) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l := &Locker{client: client, ttl: ttl, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TTL returns the lease lifetime
func (l *Locker) TTL() time.Duration {
	return l.ttl
}

// Lock is a held lease
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes the lease for account or returns ErrLocked
func (l *Locker) Acquire(ctx context.Context, account string) (*Lock, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generating lock token: %w", err)
	}

	key := l.prefix + account
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring refresh lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release gives the lease back. Releasing an expired or stolen lease is a
// no-op.
func (lk *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Err(); err != nil {
		return fmt.Errorf("releasing refresh lock: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Do runs fn while holding the lease for account. The lease is released
// even when ctx is canceled.
func (l *Locker) Do(ctx context.Context, account string, fn func(context.Context) error) error {
	lk, err := l.Acquire(ctx, account)
	if err != nil {
		return err
	}
	defer func() {
		// The TTL reclaims the key if release fails
		_ = lk.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}
