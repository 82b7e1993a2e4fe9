package deviceflow

import (
	"fmt"
	"time"

	"github.com/wrale/game-session-auth/internal/oauth"
)

// State is the position of a Session in the device login state machine
type State int

const (
	StateCreated State = iota
	StatePending
	StateApproved
	StateDeclined
	StateExpired
)

var stateNames = map[State]string{
	StateCreated:  "created",
	StatePending:  "pending",
	StateApproved: "approved",
	StateDeclined: "declined",
	StateExpired:  "expired",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further polling is allowed
func (s State) Terminal() bool {
	return s == StateApproved || s == StateDeclined || s == StateExpired
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown device session state %q", text)
}

// Session tracks one unattended login. It is owned by a single caller and
// discarded once it reaches a terminal state.
type Session struct {
	DeviceCode      string        `json:"device_code"`
	UserCode        string        `json:"user_code"`
	VerificationURI string        `json:"verification_uri"`
	Message         string        `json:"message,omitempty"`
	Interval        time.Duration `json:"interval"`
	ExpiresAt       time.Time     `json:"expires_at"`
	LastPollAt      time.Time     `json:"last_poll_at"`
	State           State         `json:"state"`
}

// ExpiresIn returns the whole seconds left before the device code expires
func (s *Session) ExpiresIn(now time.Time) int64 {
	remaining := int64(s.ExpiresAt.Sub(now) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the advertised lifetime has passed
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NextPollAt is the earliest time a poll will reach the provider
func (s *Session) NextPollAt() time.Time {
	return s.LastPollAt.Add(s.Interval)
}

// Status is the result of a single poll
type Status int

const (
	Pending Status = iota
	Declined
	Approved
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Declined:
		return "declined"
	case Approved:
		return "approved"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is returned by Poll. Token is set only when Status is Approved.
type Outcome struct {
	Status Status
	Token  *oauth.ProviderToken
}
