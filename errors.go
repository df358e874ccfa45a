package parmin

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Device discovery errors (no matching accelerator)
	ErrTypeDevice ErrorType = iota
	// Kernel program build errors
	ErrTypeCompile
	// Buffer or kernel object allocation errors
	ErrTypeMemory
	// Rejected or failed dispatches
	ErrTypeDispatch
	// Invalid argument errors
	ErrTypeInvalidArg
	// Device result disagrees with the host reference
	ErrTypeVerification
)

// Error represents a structured error with context. Code carries the
// numeric status reported by the runtime and Log the verbatim build log
// for compile failures.
type Error struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Code    Code   // Runtime status code
	Log     string // Build log, compile failures only
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("parmin %s error in %s: %s", e.Type, e.Op, e.Message)
	if e.Code != Success {
		msg += fmt.Sprintf(" [%s %d]", e.Code, int32(e.Code))
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeDevice:
		return "DeviceUnavailable"
	case ErrTypeCompile:
		return "CompileFailure"
	case ErrTypeMemory:
		return "ResourceExhaustion"
	case ErrTypeDispatch:
		return "DispatchFailure"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeVerification:
		return "VerificationMismatch"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewDeviceError creates a device discovery error
func NewDeviceError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeDevice,
		Op:      op,
		Message: message,
		Code:    DeviceNotFound,
		Err:     err,
	}
}

// NewCompileError creates a build failure carrying the compiler log
func NewCompileError(op string, log string, err error) error {
	return &Error{
		Type:    ErrTypeCompile,
		Op:      op,
		Message: "program build failed",
		Code:    BuildProgramFailure,
		Log:     log,
		Err:     err,
	}
}

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeMemory,
		Op:      op,
		Message: message,
		Code:    MemObjectAllocationFailure,
		Err:     err,
	}
}

// NewDispatchError creates a dispatch error with the given runtime code
func NewDispatchError(op string, code Code, message string, err error) error {
	return &Error{
		Type:    ErrTypeDispatch,
		Op:      op,
		Message: message,
		Code:    code,
		Err:     err,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
		Code:    InvalidValue,
	}
}

// NewVerificationError reports a device result that differs from the reference
func NewVerificationError(op string, got, want uint32) error {
	return &Error{
		Type:    ErrTypeVerification,
		Op:      op,
		Message: fmt.Sprintf("device computed %d, reference is %d", got, want),
	}
}

// Common pre-defined errors

var (
	// ErrNoDevice indicates that no execution units are available
	ErrNoDevice = NewDeviceError("Device", "no compute device available", nil)

	// ErrInvalidSize indicates invalid size parameter
	ErrInvalidSize = NewInvalidArgError("CreateBuffer", "size must be positive")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = &Error{
		Type:    ErrTypeMemory,
		Op:      "Release",
		Message: "double free detected",
		Code:    InvalidMemObject,
	}

	// ErrReleased indicates use of a context after Release
	ErrReleased = NewInvalidArgError("Context", "context has been released")
)

func errorType(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

// IsDeviceError checks if an error is a device discovery error
func IsDeviceError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeDevice
}

// IsCompileError checks if an error is a program build error
func IsCompileError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeCompile
}

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeMemory
}

// IsDispatchError checks if an error is a dispatch error
func IsDispatchError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeDispatch
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeInvalidArg
}

// IsVerificationError checks if an error reports a result mismatch
func IsVerificationError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeVerification
}

// CodeOf returns the runtime status code carried by err, or Success.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Success
}

// BuildLog returns the compiler log carried by a compile error.
func BuildLog(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Log
	}
	return ""
}
