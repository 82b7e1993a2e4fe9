// Package device starts device logins for clients without a browser
package device

import (
	"context"
	"net/http"
	"time"

	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/common"
	"github.com/wrale/game-session-auth/internal/deviceflow"
)

// CodeResponse is the device code response. Interval is in seconds.
type CodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval"`
	Message         string `json:"message,omitempty"`
}

// Starter begins device sessions
type Starter interface {
	Start(ctx context.Context) (*deviceflow.Session, error)
	Now() time.Time
}

// Handler processes device code requests
type Handler struct {
	poller Starter
	store  deviceflow.Store
}

// New creates a new device code request handler
func New(poller Starter, store deviceflow.Store) *Handler {
	return &Handler{
		poller: poller,
		store:  store,
	}
}

// ServeHTTP handles device code requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "POST method required")
		return
	}

	if err := r.ParseForm(); err != nil {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "Invalid request format")
		return
	}

	for key, values := range r.Form {
		if len(values) > 1 {
			common.WriteError(w, common.ErrorCodeInvalidRequest, "Parameters MUST NOT be included more than once: "+key)
			return
		}
	}

	session, err := h.poller.Start(r.Context())
	if err != nil {
		common.WriteUpstreamError(w, r, err)
		return
	}

	if err := h.store.SaveSession(r.Context(), session); err != nil {
		common.WriteErrorStatus(w, http.StatusInternalServerError, common.ErrorCodeServerError, "Failed to store device session")
		return
	}

	expiresIn := session.ExpiresIn(h.poller.Now())
	if expiresIn <= 0 {
		common.WriteError(w, common.ErrorCodeExpiredToken, "The device_code has expired")
		return
	}

	common.WriteJSON(w, CodeResponse{
		DeviceCode:      session.DeviceCode,
		UserCode:        session.UserCode,
		VerificationURI: session.VerificationURI,
		ExpiresIn:       expiresIn,
		Interval:        int64(session.Interval / time.Second),
		Message:         session.Message,
	})
}
