package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline error taxonomy.
var (
	ErrUnsupportedFormat       = errors.New("unsupported format")
	ErrCorruptDocument         = errors.New("corrupt document")
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrStoreTransient          = errors.New("store transient error")
	ErrClassificationAmbiguous = errors.New("classification ambiguous")
	ErrMappingUnresolved       = errors.New("mapping unresolved")
	ErrValidationFailed        = errors.New("validation failed")
	ErrCancelled               = errors.New("run cancelled")
)

// Stable error codes carried by AppError and failure reports.
const (
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeCorruptDocument   = "CORRUPT_DOCUMENT"
	CodeNotFound          = "NOT_FOUND"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeStoreTransient    = "STORE_TRANSIENT"
	CodeCancelled         = "CANCELLED"
	CodeConfig            = "CONFIG_ERROR"
	CodeInternal          = "INTERNAL"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func UnsupportedFormat(format string, args ...any) error {
	return NewAppError(CodeUnsupportedFormat, fmt.Sprintf(format, args...), ErrUnsupportedFormat)
}

func CorruptDocument(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		return NewAppError(CodeCorruptDocument, msg, errors.Join(ErrCorruptDocument, cause))
	}
	return NewAppError(CodeCorruptDocument, msg, ErrCorruptDocument)
}

// ErrorCode maps err onto the taxonomy code reported to callers.
func ErrorCode(err error) string {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, ErrCorruptDocument):
		return CodeCorruptDocument
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrStoreTransient):
		// a store timeout wraps context.DeadlineExceeded but is not a cancellation
		return CodeStoreTransient
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.As(err, &appErr):
		return appErr.Code
	}
	return CodeInternal
}

// IsRetryable reports whether err is a transient infrastructure fault.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreTransient)
}

// IsFatalInput reports input-data faults that must never be retried.
func IsFatalInput(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrCorruptDocument)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus converts a taxonomy error into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch ErrorCode(err) {
	case CodeUnsupportedFormat, CodeCorruptDocument:
		return status.Error(codes.InvalidArgument, err.Error())
	case CodeNotFound:
		return status.Error(codes.NotFound, err.Error())
	case CodeStoreTransient, CodeStoreUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	case CodeCancelled:
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, ErrInvalidInput) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
