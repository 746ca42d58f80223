package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/rxq/internal/operation"
)

// DispatchError reports an operation the Dispatcher could not deliver.
type DispatchError struct {
	// Code identifies the error category.
	Code DispatchErrorCode

	// Kind is the operation variant, empty when no operation was involved.
	Kind operation.Kind

	// Seq is the sequence number assigned to the operation, 0 if none.
	Seq int64

	// Message is a human-readable description.
	Message string

	// Err is the underlying engine error.
	Err error
}

// DispatchErrorCode categorizes dispatch errors.
type DispatchErrorCode string

const (
	// ErrCodeEngineFailed indicates the engine rejected the operation.
	ErrCodeEngineFailed DispatchErrorCode = "ENGINE_FAILED"

	// ErrCodeVersionMismatch indicates the engine does not accept this IR version.
	ErrCodeVersionMismatch DispatchErrorCode = "VERSION_MISMATCH"

	// ErrCodeCanceled indicates the context was done before dispatch.
	ErrCodeCanceled DispatchErrorCode = "CANCELED"

	// ErrCodeNoEngine indicates no engine was configured.
	ErrCodeNoEngine DispatchErrorCode = "NO_ENGINE"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (op=%s, seq=%d)", e.Code, msg, e.Kind, e.Seq)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying engine error.
func (e *DispatchError) Unwrap() error { return e.Err }

// IsEngineError reports whether err is an engine rejection.
// Uses errors.As to handle wrapped errors.
func IsEngineError(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeEngineFailed
	}
	return false
}

// IsVersionMismatch reports whether err is an IR version mismatch.
func IsVersionMismatch(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeVersionMismatch
	}
	return false
}
