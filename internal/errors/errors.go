package errors

import (
	stderrors "errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if stderrors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

func IsInternalError(err error) (*InternalError, bool) {
	var ie *InternalError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// Code identifies a workflow rule violation. Codes are part of the API
// contract and appear verbatim in error response bodies.
type Code string

const (
	CodeIllegalTransition        Code = "ILLEGAL_TRANSITION"
	CodeOrderNotEligible         Code = "ORDER_NOT_ELIGIBLE"
	CodeDuplicateContract        Code = "DUPLICATE_CONTRACT"
	CodeInvalidAmount            Code = "INVALID_AMOUNT"
	CodeInventoryAlreadyReserved Code = "INVENTORY_ALREADY_RESERVED"
	CodeConcurrentModification   Code = "CONCURRENT_MODIFICATION"
	CodeReplayedCallback         Code = "REPLAYED_CALLBACK"
	CodeCallbackInFlight         Code = "CALLBACK_IN_FLIGHT"
	CodeGatewayUnavailable       Code = "GATEWAY_UNAVAILABLE"
)

type WorkflowError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *WorkflowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *WorkflowError) Unwrap() error {
	return e.Cause
}

func NewWorkflowError(code Code, format string, args ...any) *WorkflowError {
	return &WorkflowError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func NewIllegalTransitionError(kind, from, to string) *WorkflowError {
	return NewWorkflowError(CodeIllegalTransition, "%s cannot move from %q to %q", kind, from, to)
}

func NewConcurrentModificationError(kind, id string) *WorkflowError {
	return NewWorkflowError(CodeConcurrentModification, "%s %s was modified concurrently", kind, id)
}

func NewGatewayUnavailableError(cause error) *WorkflowError {
	return &WorkflowError{
		Code:    CodeGatewayUnavailable,
		Message: "payment gateway unavailable",
		Cause:   cause,
	}
}

func IsWorkflowError(err error) (*WorkflowError, bool) {
	var we *WorkflowError
	if stderrors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// HasCode reports whether err carries the given workflow code anywhere in its chain.
func HasCode(err error, code Code) bool {
	we, ok := IsWorkflowError(err)
	return ok && we.Code == code
}
