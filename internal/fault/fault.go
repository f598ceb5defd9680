// Package fault defines the error taxonomy shared by the query core.
//
// Every error is a distinct struct type so callers can match with errors.As;
// the Is* helpers wrap that for the common case. Errors are never retried
// inside the core; retry policy belongs to the caller.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Code categorizes a core error. It is stable and safe to show to users.
type Code string

const (
	CodeUnknown                   Code = "UNKNOWN"
	CodeInvalidQuery              Code = "INVALID_QUERY"
	CodeUnsupportedConstraint     Code = "UNSUPPORTED_CONSTRAINT"
	CodeUnsupportedDialectFeature Code = "UNSUPPORTED_DIALECT_FEATURE"
	CodeDecode                    Code = "DECODE"
	CodePoolTimeout               Code = "POOL_TIMEOUT"
	CodeConnectFailure            Code = "CONNECT_FAILURE"
	CodeTransaction               Code = "TRANSACTION"
)

type coded interface {
	Code() Code
}

// CodeOf returns the Code of the first core error in err's chain.
func CodeOf(err error) Code {
	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeUnknown
}

// InvalidQueryError reports a plan that cannot be built: negative skip or
// limit, aggregation combined with raw retrieval, an operator that is not
// legal for a field's domain, or a malformed constraint tree.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("%s: %s", CodeInvalidQuery, e.Reason)
}

// Code implements coded.
func (e *InvalidQueryError) Code() Code { return CodeInvalidQuery }

// InvalidQuery creates an InvalidQueryError with a formatted reason.
func InvalidQuery(format string, args ...any) *InvalidQueryError {
	return &InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedConstraintError reports a constraint the target backend cannot
// express with the same semantics as the other backends.
type UnsupportedConstraintError struct {
	Target   string
	Field    string
	Operator string
}

func (e *UnsupportedConstraintError) Error() string {
	return fmt.Sprintf("%s: operator %s on field %q is not supported by %s",
		CodeUnsupportedConstraint, e.Operator, e.Field, e.Target)
}

// Code implements coded.
func (e *UnsupportedConstraintError) Code() Code { return CodeUnsupportedConstraint }

// UnsupportedDialectFeatureError reports an operator or function a plan needs
// that the SQL dialect does not declare. There is no fallback rendering.
type UnsupportedDialectFeatureError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedDialectFeatureError) Error() string {
	return fmt.Sprintf("%s: dialect %s has no rendering for %s",
		CodeUnsupportedDialectFeature, e.Dialect, e.Feature)
}

// Code implements coded.
func (e *UnsupportedDialectFeatureError) Code() Code { return CodeUnsupportedDialectFeature }

// DecodeError reports a raw row or document value that could not be
// converted to its field's domain. The record being decoded is discarded.
type DecodeError struct {
	Field  string
	Domain string
	Raw    any
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: field %q (%s) from %T: %v", CodeDecode, e.Field, e.Domain, e.Raw, e.Err)
	}
	return fmt.Sprintf("%s: field %q (%s) from %T", CodeDecode, e.Field, e.Domain, e.Raw)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Code implements coded.
func (e *DecodeError) Code() Code { return CodeDecode }

// PoolTimeoutError reports that no connection became idle within the
// pool's acquisition bound.
type PoolTimeoutError struct {
	Pool    string
	Waited  time.Duration
	MaxSize int
}

func (e *PoolTimeoutError) Error() string {
	return fmt.Sprintf("%s: no connection available in pool %q after %s (max %d)",
		CodePoolTimeout, e.Pool, e.Waited, e.MaxSize)
}

// Code implements coded.
func (e *PoolTimeoutError) Code() Code { return CodePoolTimeout }

// ConnectFailureError reports a backend that could not be reached.
type ConnectFailureError struct {
	Backend string
	Err     error
}

func (e *ConnectFailureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", CodeConnectFailure, e.Backend, e.Err)
}

func (e *ConnectFailureError) Unwrap() error { return e.Err }

// Code implements coded.
func (e *ConnectFailureError) Code() Code { return CodeConnectFailure }

// TransactionError is reported by an external transactional collaborator.
// The core only carries it through; it never retries.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", CodeTransaction, e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// Code implements coded.
func (e *TransactionError) Code() Code { return CodeTransaction }

// IsInvalidQuery returns true if err wraps an InvalidQueryError.
func IsInvalidQuery(err error) bool {
	var e *InvalidQueryError
	return errors.As(err, &e)
}

// IsUnsupportedConstraint returns true if err wraps an UnsupportedConstraintError.
func IsUnsupportedConstraint(err error) bool {
	var e *UnsupportedConstraintError
	return errors.As(err, &e)
}

// IsUnsupportedDialectFeature returns true if err wraps an UnsupportedDialectFeatureError.
func IsUnsupportedDialectFeature(err error) bool {
	var e *UnsupportedDialectFeatureError
	return errors.As(err, &e)
}

// IsDecode returns true if err wraps a DecodeError.
func IsDecode(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// IsPoolTimeout returns true if err wraps a PoolTimeoutError.
func IsPoolTimeout(err error) bool {
	var e *PoolTimeoutError
	return errors.As(err, &e)
}

// IsConnectFailure returns true if err wraps a ConnectFailureError.
func IsConnectFailure(err error) bool {
	var e *ConnectFailureError
	return errors.As(err, &e)
}

// IsTransaction returns true if err wraps a TransactionError.
func IsTransaction(err error) bool {
	var e *TransactionError
	return errors.As(err, &e)
}
