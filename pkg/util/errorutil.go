package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the routing engine failure taxonomy.
const (
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamRejected    = "UPSTREAM_REJECTED"
	CodeUpstreamMalformed   = "UPSTREAM_MALFORMED"
	CodeNoEligibleAgent     = "NO_ELIGIBLE_AGENT"
	CodePoisonMessage       = "POISON_MESSAGE"
	CodeConsumerExhausted   = "CONSUMER_EXHAUSTED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewUpstreamUnavailable marks a transport-level failure talking to a peer service.
func NewUpstreamUnavailable(service string, err error) error {
	return &DomainError{
		Code:       CodeUpstreamUnavailable,
		Message:    fmt.Sprintf("%s unavailable", service),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"service": service},
		Err:        err,
	}
}

// NewUpstreamRejected marks a non-2xx response from a peer write endpoint.
func NewUpstreamRejected(service string, status int) error {
	return &DomainError{
		Code:       CodeUpstreamRejected,
		Message:    fmt.Sprintf("%s rejected request", service),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"service": service, "status": status},
	}
}

// NewUpstreamMalformed marks a peer response whose shape could not be parsed.
func NewUpstreamMalformed(service, shape string) error {
	return &DomainError{
		Code:       CodeUpstreamMalformed,
		Message:    fmt.Sprintf("unexpected response shape from %s", service),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"service": service, "shape": shape},
	}
}

// NewNoEligibleAgent marks the business outcome of an exhausted candidate search.
func NewNoEligibleAgent(attentionGroup string, evaluated int) error {
	return &DomainError{
		Code:       CodeNoEligibleAgent,
		Message:    fmt.Sprintf("no eligible agent for attention group %q", attentionGroup),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"attention_group": attentionGroup, "evaluated": evaluated},
	}
}

// NewPoisonMessage marks an event body that cannot be decoded.
func NewPoisonMessage(err error) error {
	return &DomainError{
		Code:       CodePoisonMessage,
		Message:    "undecodable event payload",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

// NewConsumerExhausted marks the consumer retry ceiling being hit.
func NewConsumerExhausted(attempts int, err error) error {
	return &DomainError{
		Code:       CodeConsumerExhausted,
		Message:    fmt.Sprintf("broker consumer gave up after %d attempts", attempts),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"attempts": attempts},
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func MapError(err error) error {
	return ToDomainError(err)
}
