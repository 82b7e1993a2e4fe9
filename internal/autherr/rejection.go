package autherr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Rejection is a decoded provider error body. The set of implementations is
// closed: IdentityRejection, BrokerRejection and GameRejection.
type Rejection interface {
	Provider() Provider
	RejectionCode() string
	RejectionDescription() string

	rejection()
}

// IdentityRejection is the identity platform error body.
type IdentityRejection struct {
	Error            string  `json:"error"`
	ErrorDescription string  `json:"error_description"`
	ErrorCodes       []int64 `json:"error_codes,omitempty"`
	Timestamp        string  `json:"timestamp,omitempty"`
	TraceID          string  `json:"trace_id,omitempty"`
	CorrelationID    string  `json:"correlation_id,omitempty"`
	ErrorURI         string  `json:"error_uri,omitempty"`
}

func (IdentityRejection) Provider() Provider { return ProviderIdentity }
func (r IdentityRejection) RejectionCode() string { return r.Error }
func (r IdentityRejection) RejectionDescription() string { return r.ErrorDescription }
func (IdentityRejection) rejection() {}

// BrokerRejection is the console identity broker error body. XErr arrives
// as a JSON number but some deployments quote it.
type BrokerRejection struct {
	Identity string      `json:"Identity"`
	XErr     json.Number `json:"XErr"`
	Message  string      `json:"Message"`
	Redirect string      `json:"Redirect"`
}

func (BrokerRejection) Provider() Provider { return ProviderBroker }
func (r BrokerRejection) RejectionCode() string { return r.XErr.String() }

func (r BrokerRejection) RejectionDescription() string {
	if r.Message != "" {
		return r.Message
	}
	return brokerErrorText[r.XErr.String()]
}

func (BrokerRejection) rejection() {}

// Known XErr values returned by the broker's security token service.
var brokerErrorText = map[string]string{
	"2148916227": "account is banned from the console network",
	"2148916229": "account is restricted by parental controls",
	"2148916233": "account has no console profile",
	"2148916234": "account has not accepted the console network terms",
	"2148916235": "console network is unavailable in the account's country",
	"2148916236": "account requires adult verification",
	"2148916237": "account requires adult verification",
	"2148916238": "child account must be added to a family by an adult",
}

// GameRejection is the game service error body.
type GameRejection struct {
	Path             string `json:"path"`
	ErrorType        string `json:"errorType,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	DeveloperMessage string `json:"developerMessage,omitempty"`
}

func (GameRejection) Provider() Provider { return ProviderGame }

func (r GameRejection) RejectionCode() string {
	if r.Error != "" {
		return r.Error
	}
	return r.ErrorType
}

func (r GameRejection) RejectionDescription() string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return r.DeveloperMessage
}

func (GameRejection) rejection() {}

var errEmptyRejection = errors.New("error body carries no error code")

// DecodeRejection parses body with the schema of provider.
func DecodeRejection(provider Provider, body []byte) (Rejection, error) {
	switch provider {
	case ProviderIdentity:
		var r IdentityRejection
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("parsing identity error body: %w", err)
		}
		if r.Error == "" {
			return nil, errEmptyRejection
		}
		return r, nil

	case ProviderBroker:
		var r BrokerRejection
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("parsing broker error body: %w", err)
		}
		if r.XErr == "" {
			return nil, errEmptyRejection
		}
		return r, nil

	case ProviderGame:
		var r GameRejection
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("parsing game error body: %w", err)
		}
		if r.RejectionCode() == "" && r.ErrorMessage == "" {
			return nil, errEmptyRejection
		}
		return r, nil

	default:
		return nil, fmt.Errorf("no error schema for provider %q", provider)
	}
}
