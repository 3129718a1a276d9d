package spreadsheet

import (
	"fmt"

	"github.com/pkg/errors"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error. Errors raised by APIs that do not return enough error
	// information may be converted to this error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates the caller passed a malformed address, value
	// or formula.
	InvalidArgument AppErrorCode = 3

	// NotFound means a worksheet or defined name was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates the operation was rejected because the
	// workbook is not in a state required for it, e.g. writing into the
	// middle of an array formula.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means an address or range lies outside the sheet bounds.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

var appErrorCodeNames = map[AppErrorCode]string{
	OK:                 "ok",
	Unknown:            "unknown",
	InvalidArgument:    "invalid argument",
	NotFound:           "not found",
	AlreadyExists:      "already exists",
	FailedPrecondition: "failed precondition",
	OutOfRange:         "out of range",
	Internal:           "internal",
}

func (c AppErrorCode) String() string {
	if name, ok := appErrorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// AppError represents errors at the application level (not spreadsheet
// formula errors, which are values).
type AppError struct {
	Code    AppErrorCode
	Message string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Cause returns the error that triggered this one, if any.
func (e *AppError) Cause() error { return e.cause }

func (e *AppError) Unwrap() error { return e.cause }

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// newApplicationErrorf formats the message and keeps cause for errors.Cause.
func newApplicationErrorf(code AppErrorCode, cause error, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// ErrorCode extracts the AppErrorCode from err. Errors that are not
// application errors map to Unknown, and nil maps to OK.
func ErrorCode(err error) AppErrorCode {
	if err == nil {
		return OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}
