package types

import (
	"fmt"
	"maps"
	"strings"
)

// Common error codes
const (
	ErrExtractionFailed   = "EXTRACTION_FAILED"
	ErrInvalidAddress     = "INVALID_ADDRESS_FORMAT"
	ErrUnsupportedCountry = "UNSUPPORTED_COUNTRY"
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrCheckoutFailed     = "CHECKOUT_FAILED"
	ErrInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrNetworkError       = "NETWORK_ERROR"
	ErrSettlementFailed   = "SETTLEMENT_FAILED"
	ErrConfigError        = "CONFIG_ERROR"
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
)

// ExpectedAddressFormat is the single-line shape accepted for shipping addresses.
const ExpectedAddressFormat = "Name, Street, City, State ZIP, Country"

// ExtractionError reports a product URL with no recognizable product reference.
type ExtractionError struct {
	URL     string
	Message string
}

func (e *ExtractionError) Error() string {
	return e.Message
}

func (e *ExtractionError) Code() string { return ErrExtractionFailed }

// AddressFormatError reports a shipping address that does not split into enough parts.
type AddressFormatError struct {
	Address string
	Parts   int
}

func (e *AddressFormatError) Error() string {
	return fmt.Sprintf("invalid shipping address format: expected %q, got %d part(s)", ExpectedAddressFormat, e.Parts)
}

func (e *AddressFormatError) Code() string { return ErrInvalidAddress }

// UnsupportedCountryError reports a shipping country other than US.
type UnsupportedCountryError struct {
	Country string
}

func (e *UnsupportedCountryError) Error() string {
	return fmt.Sprintf("unsupported shipping country %q: only %s is supported", e.Country, CountryUS)
}

func (e *UnsupportedCountryError) Code() string { return ErrUnsupportedCountry }

// InvalidRequestError lists the fields of a purchase request that failed validation.
type InvalidRequestError struct {
	Fields []string
	Err    error
}

func (e *InvalidRequestError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid purchase request: %v", e.Err)
	}
	return "invalid purchase request: " + strings.Join(e.Fields, ", ")
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

func (e *InvalidRequestError) Code() string { return ErrInvalidRequest }

// CheckoutError is a failure reported by, or while talking to, the checkout capability.
type CheckoutError struct {
	ErrCode    string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

// NewCheckoutError creates a CheckoutError with the given code and message.
func NewCheckoutError(code, message string, err error) *CheckoutError {
	return &CheckoutError{
		ErrCode: code,
		Message: message,
		Err:     err,
	}
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CheckoutError) Unwrap() error { return e.Err }

func (e *CheckoutError) Code() string { return e.ErrCode }

// Clone returns a copy of e with its own Details map. The cause is shared.
func (e *CheckoutError) Clone() *CheckoutError {
	c := *e
	c.Details = maps.Clone(e.Details)
	return &c
}

// WithDetails adds context to the error. The Details map is created lazily.
func (e *CheckoutError) WithDetails(key string, value any) *CheckoutError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ConfigError is a coded error for configuration and wiring failures.
type ConfigError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e ConfigError) Error() string {
	return e.Message
}
