// Package account holds the persisted credential bundle and the refresh
// policy that keeps its game session current.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidBundle is returned for bundles missing a required field
var ErrInvalidBundle = errors.New("invalid credential bundle")

// Bundle is the only persisted credential. The security token is never part
// of it.
type Bundle struct {
	RefreshToken    string          `json:"refresh_token"`
	ConsoleIdentity ConsoleIdentity `json:"console_identity"`
	GameSession     GameSession     `json:"game_session"`
}

// ConsoleIdentity is the persisted console identity token
type ConsoleIdentity struct {
	Token     string    `json:"token"`
	UserHash  string    `json:"user_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GameSession is the persisted game session token
type GameSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authorization returns the header value for game service requests
func (b *Bundle) Authorization() string {
	return "Bearer " + b.GameSession.Token
}

// Validate checks that every persisted field is present
func (b *Bundle) Validate() error {
	switch {
	case b.RefreshToken == "":
		return fmt.Errorf("%w: missing refresh_token", ErrInvalidBundle)
	case b.ConsoleIdentity.Token == "":
		return fmt.Errorf("%w: missing console_identity.token", ErrInvalidBundle)
	case b.ConsoleIdentity.UserHash == "":
		return fmt.Errorf("%w: missing console_identity.user_hash", ErrInvalidBundle)
	case b.ConsoleIdentity.ExpiresAt.IsZero():
		return fmt.Errorf("%w: missing console_identity.expires_at", ErrInvalidBundle)
	case b.GameSession.Token == "":
		return fmt.Errorf("%w: missing game_session.token", ErrInvalidBundle)
	case b.GameSession.ExpiresAt.IsZero():
		return fmt.Errorf("%w: missing game_session.expires_at", ErrInvalidBundle)
	}
	return nil
}

// Encode writes b as indented JSON
func Encode(w io.Writer, b *Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encoding credential bundle: %w", err)
	}
	return nil
}

// Decode reads and validates a bundle
func Decode(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding credential bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Load reads a bundle from path
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening credential bundle: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Save replaces path with b. The file is written next to path and renamed
// into place with mode 0600.
func Save(path string, b *Bundle) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary bundle file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting bundle file mode: %w", err)
	}
	if err := Encode(tmp, b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing bundle file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing bundle file: %w", err)
	}
	return nil
}
