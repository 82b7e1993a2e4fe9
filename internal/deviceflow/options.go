package deviceflow

import (
	"log/slog"
	"time"
)

// Option configures a Poller
type Option func(*Poller)

// WithClock sets the time source used for expiry and throttling
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithDefaultInterval sets the poll interval used when the provider omits one
func WithDefaultInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.defaultInterval = d
	}
}
