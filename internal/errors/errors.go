// Package errors defines the ServiceError type shared by every exchange
// component. Errors are classified by Kind (validation, permission,
// state_conflict, transfer_failure, internal) and identified by Code, so
// callers can branch on the class with IsValidation/IsPermission/... and on
// the exact cause with errors.Is against a package sentinel.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindPermission      Kind = "permission"
	KindStateConflict   Kind = "state_conflict"
	KindTransferFailure Kind = "transfer_failure"
	KindInternal        Kind = "internal"
)

// ErrorCode names a specific cause within a Kind.
type ErrorCode string

// ServiceError is the error type returned by all services.
type ServiceError struct {
	Kind    Kind
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is reports whether target is a ServiceError with the same kind and code.
// Details and the wrapped cause are ignored, so a sentinel matches every
// copy produced from it by WithDetails or Wrap.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithDetails returns a copy of e with key set in Details.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Wrap returns a copy of e carrying err as its cause.
func (e *ServiceError) Wrap(err error) *ServiceError {
	cp := *e
	cp.Err = err
	return &cp
}

func newError(kind Kind, code ErrorCode, msg string) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: msg}
}

// Validation reports malformed input.
func Validation(code ErrorCode, msg string) *ServiceError {
	return newError(KindValidation, code, msg)
}

// Permission reports a caller lacking a capability.
func Permission(code ErrorCode, msg string) *ServiceError {
	return newError(KindPermission, code, msg)
}

// StateConflict reports an operation incompatible with current state.
func StateConflict(code ErrorCode, msg string) *ServiceError {
	return newError(KindStateConflict, code, msg)
}

// TransferFailed reports a failed value or custody transfer.
func TransferFailed(msg string, err error) *ServiceError {
	return &ServiceError{Kind: KindTransferFailure, Code: "transfer_failed", Message: msg, Err: err}
}

// Internal reports a broken invariant.
func Internal(msg string, err error) *ServiceError {
	return &ServiceError{Kind: KindInternal, Code: "internal", Message: msg, Err: err}
}

// GetServiceError extracts the first ServiceError in err's chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// KindOf returns the kind of err, or "" when err is not a ServiceError.
func KindOf(err error) Kind {
	if se := GetServiceError(err); se != nil {
		return se.Kind
	}
	return ""
}

func IsValidation(err error) bool      { return KindOf(err) == KindValidation }
func IsPermission(err error) bool      { return KindOf(err) == KindPermission }
func IsStateConflict(err error) bool   { return KindOf(err) == KindStateConflict }
func IsTransferFailure(err error) bool { return KindOf(err) == KindTransferFailure }

// Standard library passthroughs so callers need a single import.

func New(text string) error                 { return stderrors.New(text) }
func Is(err, target error) bool             { return stderrors.Is(err, target) }
func As(err error, target interface{}) bool { return stderrors.As(err, target) }
func Join(errs ...error) error              { return stderrors.Join(errs...) }
