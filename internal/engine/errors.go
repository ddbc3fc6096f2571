package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/opgraph/internal/ops"
)

// EvalError is a failure attributed to one node of an expression graph.
//
// The original cause is kept in Err so errors.Is and errors.As still reach
// sentinels such as ops.ErrTypeMismatch or ops.ErrNotFound.
type EvalError struct {
	// Code identifies the error category.
	Code EvalErrorCode

	// OpName is the operation of the failing node, if any.
	OpName string

	// Message is a human-readable description.
	Message string

	Err error
}

// EvalErrorCode categorizes evaluation errors.
type EvalErrorCode string

const (
	// ErrCodeTypeMismatch indicates a resolver saw a value inconsistent
	// with its declared argument type.
	ErrCodeTypeMismatch EvalErrorCode = "TYPE_MISMATCH"

	// ErrCodeBackend indicates the backend failed.
	ErrCodeBackend EvalErrorCode = "BACKEND"

	// ErrCodeResolver indicates any other resolver failure.
	ErrCodeResolver EvalErrorCode = "RESOLVER"

	// ErrCodeUnknownOp indicates a node names an unregistered operation.
	ErrCodeUnknownOp EvalErrorCode = "UNKNOWN_OP"

	// ErrCodeUnboundVar indicates a variable has no value in scope.
	ErrCodeUnboundVar EvalErrorCode = "UNBOUND_VAR"
)

// Error implements the error interface.
func (e *EvalError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.OpName != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, msg, e.OpName)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code EvalErrorCode) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsTypeMismatch returns true if err is a type mismatch.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrCodeTypeMismatch) }

// IsBackendError returns true if err came from the backend.
func IsBackendError(err error) bool { return hasCode(err, ErrCodeBackend) }

// IsResolverError returns true if err is a generic resolver failure.
func IsResolverError(err error) bool { return hasCode(err, ErrCodeResolver) }

// IsUnknownOp returns true if err names an unregistered operation.
func IsUnknownOp(err error) bool { return hasCode(err, ErrCodeUnknownOp) }

// IsUnboundVar returns true if err is an unbound variable.
func IsUnboundVar(err error) bool { return hasCode(err, ErrCodeUnboundVar) }

// NewUnknownOpError creates an EvalError for an unregistered operation.
func NewUnknownOpError(opName string) *EvalError {
	return &EvalError{
		Code:    ErrCodeUnknownOp,
		OpName:  opName,
		Message: fmt.Sprintf("operation %q is not registered", opName),
	}
}

// NewUnboundVarError creates an EvalError for a variable without a value.
func NewUnboundVarError(name string) *EvalError {
	return &EvalError{
		Code:    ErrCodeUnboundVar,
		Message: fmt.Sprintf("variable %q has no value in scope", name),
	}
}

// backendError marks errors returned by the backend so they can be
// classified at the node boundary.
type backendError struct {
	op  string
	err error
}

func (e *backendError) Error() string { return fmt.Sprintf("backend %s: %v", e.op, e.err) }
func (e *backendError) Unwrap() error { return e.err }

// wrapResolveError attributes a resolver failure to a node. Errors that are
// already attributed to a deeper node are returned unchanged.
func wrapResolveError(opName string, err error) error {
	var ee *EvalError
	if errors.As(err, &ee) {
		return err
	}
	var be *backendError
	code := ErrCodeResolver
	switch {
	case errors.Is(err, ops.ErrTypeMismatch):
		code = ErrCodeTypeMismatch
	case errors.As(err, &be), errors.Is(err, ops.ErrNotFound):
		code = ErrCodeBackend
	}
	return &EvalError{Code: code, OpName: opName, Err: err}
}
