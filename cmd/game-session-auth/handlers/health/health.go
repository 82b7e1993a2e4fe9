// Package health reports whether the server's backing services are reachable
package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/common"
)

// Checker is a dependency that can report its health
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// Handler processes health check requests
type Handler struct {
	checks  map[string]Checker
	version string
}

// Response is the health check body. Version is omitted when empty.
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a health handler that runs every named check
func New(checks map[string]Checker) *Handler {
	return &Handler{
		checks:  checks,
		version: "unknown",
	}
}

// WithVersion sets the version for health check responses
func (h *Handler) WithVersion(version string) *Handler {
	h.version = version
	return h
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any, len(h.checks)),
	}

	for name, check := range h.checks {
		if err := check.CheckHealth(r.Context()); err != nil {
			response.Status = "unhealthy"
			response.Details[name] = map[string]any{
				"status":  "unhealthy",
				"message": err.Error(),
			}
			continue
		}
		response.Details[name] = map[string]any{"status": "healthy"}
	}

	if response.Status != "healthy" {
		common.SetJSONHeaders(w)
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			common.WriteJSONError(w, err)
		}
		return
	}
	common.WriteJSON(w, response)
}
