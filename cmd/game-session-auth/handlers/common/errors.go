// Package common holds the JSON response helpers shared by every handler
package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/autherr"
	"github.com/wrale/game-session-auth/internal/exchange"
	"github.com/wrale/game-session-auth/internal/logging"
)

// Error codes returned by the HTTP surface
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeExpiredToken         = "expired_token"
	ErrorCodeProviderRejected     = "provider_rejected"
	ErrorCodeUpstreamUnavailable  = "upstream_unavailable"
	ErrorCodeUpstreamInvalid      = "upstream_invalid_response"
	ErrorCodeRefreshInProgress    = "refresh_in_progress"
	ErrorCodeServerError          = "server_error"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`

	// Set when the failure came from an upstream provider
	Provider string `json:"provider,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Hop      string `json:"hop,omitempty"`
}

// SetJSONHeaders sets the headers for JSON responses. Token material is
// never cached.
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON writes v with a 200 status
func WriteJSON(w http.ResponseWriter, v any) {
	SetJSONHeaders(w)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		WriteJSONError(w, err)
	}
}

// WriteError sends a 400 error response
func WriteError(w http.ResponseWriter, code string, description string) {
	WriteErrorStatus(w, http.StatusBadRequest, code, description)
}

// WriteErrorStatus sends an error response with the given status
func WriteErrorStatus(w http.ResponseWriter, status int, code string, description string) {
	writeErrorResponse(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp ErrorResponse) {
	SetJSONHeaders(w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		WriteJSONError(w, err)
	}
}

// WriteJSONError handles JSON encoding failures with a standardized response
func WriteJSONError(w http.ResponseWriter, err error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)

	// Written by hand since encoding already failed
	w.Write([]byte(`{"error":"server_error","error_description":"Failed to encode response"}`))
}

// WriteUpstreamError maps a token chain failure to a response and logs it
// with the request's logger.
//
//   - transport and server faults: 502 upstream_unavailable
//   - decode failures: 502 upstream_invalid_response
//   - identity platform rejections: 400 with the provider's error code
//   - broker and game rejections: 401 provider_rejected
//   - declines: 401 access_denied
func WriteUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := UpstreamError(err)
	logging.FromContext(r.Context()).Warn("upstream call failed",
		"status", status,
		"error_code", resp.Error,
		"error", err,
	)
	writeErrorResponse(w, status, resp)
}

// UpstreamError returns the status and body WriteUpstreamError would send
func UpstreamError(err error) (int, ErrorResponse) {
	var resp ErrorResponse

	var serr *account.Error
	if errors.As(err, &serr) {
		resp.Stage = string(serr.Stage)
	}

	var herr *exchange.HopError
	if errors.As(err, &herr) {
		resp.Hop = herr.Hop.String()
	}

	var aerr *autherr.Error
	if !errors.As(err, &aerr) {
		resp.Error = ErrorCodeServerError
		resp.ErrorDescription = "Internal error"
		return http.StatusInternalServerError, resp
	}
	resp.Provider = string(aerr.Provider)

	switch aerr.Kind {
	case autherr.KindTransport, autherr.KindServerFault:
		resp.Error = ErrorCodeUpstreamUnavailable
		resp.ErrorDescription = "The " + string(aerr.Provider) + " service could not be reached"
		return http.StatusBadGateway, resp

	case autherr.KindDecode:
		resp.Error = ErrorCodeUpstreamInvalid
		resp.ErrorDescription = "The " + string(aerr.Provider) + " service returned an unexpected response"
		return http.StatusBadGateway, resp

	case autherr.KindUnauthenticated:
		resp.Error = ErrorCodeAccessDenied
		resp.ErrorDescription = aerr.Description
		if resp.ErrorDescription == "" {
			resp.ErrorDescription = "The user declined the authorization request"
		}
		return http.StatusUnauthorized, resp

	case autherr.KindProviderRejected:
		resp.ErrorDescription = aerr.Description
		if aerr.Provider == autherr.ProviderIdentity {
			resp.Error = aerr.Code
			return http.StatusBadRequest, resp
		}
		resp.Error = ErrorCodeProviderRejected
		if aerr.Code != "" {
			resp.ErrorDescription = strings.TrimSpace(aerr.Code + " " + aerr.Description)
		}
		return http.StatusUnauthorized, resp
	}

	resp.Error = ErrorCodeServerError
	resp.ErrorDescription = "Internal error"
	return http.StatusInternalServerError, resp
}
