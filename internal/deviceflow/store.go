package deviceflow

import "context"

// Store keeps device sessions between HTTP requests
type Store interface {
	// SaveSession stores a session until its device code expires
	SaveSession(ctx context.Context, s *Session) error

	// GetSession retrieves a session by device code. A missing session is
	// reported as (nil, nil).
	GetSession(ctx context.Context, deviceCode string) (*Session, error)

	// DeleteSession removes a session
	DeleteSession(ctx context.Context, deviceCode string) error

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error
}
