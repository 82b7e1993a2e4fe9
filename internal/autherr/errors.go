// Package autherr classifies failed upstream responses for the token chain.
//
// Every failure returned by the provider clients is an *Error carrying one Kind
// and, for provider rejections, the decoded provider-specific body.
package autherr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the failure class of an upstream call.
type Kind int

const (
	// KindTransport indicates a connection or I/O failure.
	KindTransport Kind = iota + 1

	// KindDecode indicates a body that does not match the expected schema.
	KindDecode

	// KindProviderRejected indicates a structured 4xx rejection from a provider.
	KindProviderRejected

	// KindServerFault indicates a 5xx response. The body is never parsed.
	KindServerFault

	// KindUnauthenticated indicates a terminal decline, such as a user
	// refusing a device code.
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindProviderRejected:
		return "provider_rejected"
	case KindServerFault:
		return "server_fault"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Provider identifies which upstream service produced an error.
type Provider string

const (
	// ProviderIdentity is the general-purpose identity platform.
	ProviderIdentity Provider = "identity"

	// ProviderBroker is the console identity broker.
	ProviderBroker Provider = "broker"

	// ProviderGame is the game service authenticator.
	ProviderGame Provider = "game"
)

// Error is the single error type returned by upstream calls.
type Error struct {
	Kind     Kind
	Provider Provider

	// Op names the operation that failed, e.g. "exchange code".
	Op string

	// StatusCode is zero for transport failures.
	StatusCode int

	// Code and Description are set for provider rejections and declines.
	Code        string
	Description string

	// Rejection holds the decoded provider body for KindProviderRejected.
	Rejection Rejection

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Provider))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may reasonably retry later.
// Nothing in this module retries on its own.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindServerFault
}

// Transport wraps a connection or I/O failure.
func Transport(provider Provider, op string, err error) *Error {
	return &Error{Kind: KindTransport, Provider: provider, Op: op, Err: err}
}

// Decode wraps a schema mismatch in a response body.
func Decode(provider Provider, op string, err error) *Error {
	return &Error{Kind: KindDecode, Provider: provider, Op: op, Err: err}
}

// Unauthenticated reports a terminal decline.
func Unauthenticated(provider Provider, op, code, description string) *Error {
	return &Error{
		Kind:        KindUnauthenticated,
		Provider:    provider,
		Op:          op,
		Code:        code,
		Description: description,
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Kind
	}
	return 0
}

// IsRejection reports whether err is a provider rejection with the given code.
func IsRejection(err error, code string) bool {
	var aerr *Error
	if !errors.As(err, &aerr) {
		return false
	}
	return aerr.Kind == KindProviderRejected && aerr.Code == code
}
