package deviceflow

import "errors"

// Common errors that may occur during an unattended login
var (
	// ErrExpiredCode indicates the device code has outlived its advertised lifetime
	ErrExpiredCode = errors.New("device code expired")

	// ErrSessionClosed indicates a poll on a session already in a terminal state
	ErrSessionClosed = errors.New("device session is closed")
)

// Rejection codes the identity platform returns while polling
const (
	codeAuthorizationPending  = "authorization_pending"
	codeAuthorizationDeclined = "authorization_declined"
	codeExpiredToken          = "expired_token"
)
