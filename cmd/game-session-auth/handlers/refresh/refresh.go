// Package refresh brings a client's credential bundle up to date
package refresh

import (
	"context"
	"errors"
	"net/http"

	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/common"
	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/refreshlock"
)

// maxBundleSize bounds the request body
const maxBundleSize = 64 << 10

// Refresher refreshes bundles in place
type Refresher interface {
	EnsureFresh(ctx context.Context, b *account.Bundle) (bool, error)
}

// Locker runs fn while no other refresh of the same account is in flight.
// It returns refreshlock.ErrLocked when one is.
type Locker interface {
	Do(ctx context.Context, account string, fn func(context.Context) error) error
}

// Response carries the bundle after the refresh policy ran
type Response struct {
	Refreshed bool            `json:"refreshed"`
	Bundle    *account.Bundle `json:"bundle"`
}

// Handler answers POST /account/refresh
type Handler struct {
	accounts Refresher
	locks    Locker
}

// New creates a refresh handler
func New(accounts Refresher, locks Locker) *Handler {
	return &Handler{accounts: accounts, locks: locks}
}

// ServeHTTP decodes the posted bundle, refreshes it and returns it. A
// failed refresh returns an error and no bundle; the client keeps its copy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "POST method required")
		return
	}

	bundle, err := account.Decode(http.MaxBytesReader(w, r.Body, maxBundleSize))
	if err != nil {
		common.WriteError(w, common.ErrorCodeInvalidRequest, err.Error())
		return
	}

	var refreshed bool
	err = h.locks.Do(r.Context(), bundle.ConsoleIdentity.UserHash, func(ctx context.Context) error {
		var err error
		refreshed, err = h.accounts.EnsureFresh(ctx, bundle)
		return err
	})
	switch {
	case errors.Is(err, refreshlock.ErrLocked):
		common.WriteErrorStatus(w, http.StatusConflict, common.ErrorCodeRefreshInProgress,
			"Another refresh of this account is in progress")
		return
	case err != nil:
		common.WriteUpstreamError(w, r, err)
		return
	}

	common.WriteJSON(w, Response{Refreshed: refreshed, Bundle: bundle})
}
