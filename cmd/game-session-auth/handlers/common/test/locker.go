package test

import (
	"context"
	"sync"

	"github.com/wrale/game-session-auth/internal/refreshlock"
)

// Locker is an in-process stand-in for refreshlock.Locker
type Locker struct {
	mu   sync.Mutex
	held map[string]bool

	// Names records every name passed to Do
	Names []string
}

// NewLocker creates a Locker with no leases held
func NewLocker() *Locker {
	return &Locker{held: make(map[string]bool)}
}

// Do runs fn while holding name, or returns refreshlock.ErrLocked
func (l *Locker) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	l.mu.Lock()
	l.Names = append(l.Names, name)
	if l.held[name] {
		l.mu.Unlock()
		return refreshlock.ErrLocked
	}
	l.held[name] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}()
	return fn(ctx)
}
