package shipper

import (
	"errors"
	"fmt"
	"net/http"
)

// ShipperError represents an error from a shipping carrier.
type ShipperError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ShipperError. Every ShipperError is a
// carrier request failure, 503 and 429 responses also match
// ErrServiceUnavailable and ErrRateLimitExceeded, and two ShipperErrors
// match on Code.
func (e *ShipperError) Is(target error) bool {
	switch target {
	case ErrCarrierRequestFailed:
		return true
	case ErrServiceUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable
	case ErrRateLimitExceeded:
		return e.StatusCode == http.StatusTooManyRequests
	}
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// Sentinel errors for the routing core.
var (
	// ErrValidation indicates a malformed or incomplete document.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedOperation indicates an unknown request type.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnsupportedCarrier indicates the named carrier is not known.
	ErrUnsupportedCarrier = errors.New("unsupported carrier")

	// ErrCarrierNotSupportedForRoute indicates an explicitly selected carrier
	// does not serve the origin country.
	ErrCarrierNotSupportedForRoute = errors.New("carrier not supported for route")

	// ErrNoCarrierForRoute indicates no registered carrier serves the origin country.
	ErrNoCarrierForRoute = errors.New("no carrier for route")

	// ErrCarrierRequestFailed indicates the carrier rejected the request or
	// could not be reached.
	ErrCarrierRequestFailed = errors.New("carrier request failed")

	// ErrSchedulingFailure indicates no pickup date could be found.
	ErrSchedulingFailure = errors.New("scheduling failure")

	// ErrPostProcessingFailed indicates a step after shipment creation failed.
	ErrPostProcessingFailed = errors.New("post-processing failed")

	// ErrNotEligible indicates the order may not be shipped right now.
	ErrNotEligible = errors.New("order not eligible for shipment")

	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// ValidationError names the document field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}

func invalidField(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// RouteError carries the route context of a failed carrier resolution.
type RouteError struct {
	RequestType   RequestType
	Carrier       string
	Preference    PreferenceKind
	OriginCountry string
	Err           error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	switch {
	case e.Carrier != "" && e.OriginCountry != "" && e.Preference == PreferenceNone:
		return fmt.Sprintf("%v: carrier %q from %q", e.Err, e.Carrier, e.OriginCountry)
	case e.Carrier != "" && e.OriginCountry != "":
		return fmt.Sprintf("%v: %s carrier %q from %q", e.Err, e.Preference, e.Carrier, e.OriginCountry)
	case e.Carrier != "":
		return fmt.Sprintf("%v: %q", e.Err, e.Carrier)
	default:
		return fmt.Sprintf("%v: origin %q", e.Err, e.OriginCountry)
	}
}

// Unwrap returns the routing sentinel.
func (e *RouteError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}
