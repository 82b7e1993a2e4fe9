package autherr

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxErrorBody bounds how much of a rejection body is read.
const maxErrorBody = 64 << 10

// Classify inspects a completed response from provider. It returns nil for
// 2xx responses and an *Error otherwise. The caller still owns resp.Body.
//
// Redirects are never expected from any provider in the chain. They are
// logged and reported as a Decode error without reading the body.
func Classify(logger *slog.Logger, provider Provider, op string, resp *http.Response) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	if status >= 300 && status < 400 {
		logger.Warn("provider answered with a redirect, not following",
			"provider", provider,
			"op", op,
			"status", status,
			"location", resp.Header.Get("Location"),
		)
		return &Error{
			Kind:       KindDecode,
			Provider:   provider,
			Op:         op,
			StatusCode: status,
			Err:        fmt.Errorf("unexpected redirect to %q", resp.Header.Get("Location")),
		}
	}

	if status >= 500 {
		logger.Debug("provider server fault", "provider", provider, "op", op, "status", status)
		return &Error{Kind: KindServerFault, Provider: provider, Op: op, StatusCode: status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &Error{
			Kind:       KindTransport,
			Provider:   provider,
			Op:         op,
			StatusCode: status,
			Err:        fmt.Errorf("reading error body: %w", err),
		}
	}

	rej, err := DecodeRejection(provider, body)
	if err != nil {
		logger.Debug("could not parse provider error body",
			"provider", provider, "op", op, "status", status, "error", err)
		return &Error{Kind: KindDecode, Provider: provider, Op: op, StatusCode: status, Err: err}
	}

	logger.Debug("provider rejected request",
		"provider", provider, "op", op, "status", status, "code", rej.RejectionCode())
	return &Error{
		Kind:        KindProviderRejected,
		Provider:    provider,
		Op:          op,
		StatusCode:  status,
		Code:        rej.RejectionCode(),
		Description: rej.RejectionDescription(),
		Rejection:   rej,
	}
}
