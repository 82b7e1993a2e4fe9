package exchange

import (
	"fmt"
	"time"
)

// ConsoleIdentityToken asserts the user's identity to console services
type ConsoleIdentityToken struct {
	Token    string
	UserHash string
	NotAfter time.Time
}

// SecurityToken is scoped to the game service. It is never persisted.
type SecurityToken struct {
	Token    string
	UserHash string
	NotAfter time.Time
}

// GameSessionToken is the bearer credential accepted by the game service
type GameSessionToken struct {
	Token     string
	ExpiresAt time.Time
	Username  string
	Roles     []string
}

// Hop identifies one step of the exchange
type Hop int

const (
	HopConsoleIdentity Hop = iota + 1
	HopSecurityToken
	HopGameSession
)

func (h Hop) String() string {
	switch h {
	case HopConsoleIdentity:
		return "console_identity"
	case HopSecurityToken:
		return "security_token"
	case HopGameSession:
		return "game_session"
	default:
		return fmt.Sprintf("Hop(%d)", int(h))
	}
}

// HopError reports which hop of the exchange failed
type HopError struct {
	Hop Hop
	Err error
}

func (e *HopError) Error() string {
	return fmt.Sprintf("exchange %s: %v", e.Hop, e.Err)
}

func (e *HopError) Unwrap() error {
	return e.Err
}
