package wasmtypes

import (
	"errors"
	"fmt"
)

// ErrorKind is a terminal error kind surfaced to the pipeline and written to
// the execution log (spec §7). It is a closed enum: every value the core can
// produce is listed below.
type ErrorKind string

const (
	ErrorKindModuleNotFound          ErrorKind = "ModuleNotFound"
	ErrorKindInvalidModule           ErrorKind = "InvalidModule"
	ErrorKindHashVerificationFailed  ErrorKind = "HashVerificationFailed"
	ErrorKindInvalidSignature        ErrorKind = "InvalidSignature"
	ErrorKindFuelExhausted           ErrorKind = "FuelExhausted"
	ErrorKindMemoryLimitExceeded     ErrorKind = "MemoryLimitExceeded"
	ErrorKindExecutionTimeout        ErrorKind = "ExecutionTimeout"
	ErrorKindGuestTrap               ErrorKind = "GuestTrap"
	ErrorKindPermissionDenied        ErrorKind = "PermissionDenied"
	ErrorKindHostFunctionError       ErrorKind = "HostFunctionError"
	ErrorKindInvalidOutput           ErrorKind = "InvalidOutput"
)

// Sentinel errors for simple not-found/validation cases, in the style of
// pkg/serverless/errors.go's top-level sentinels.
var (
	ErrModuleNotFound = errors.New("wasmcore: module not found")
	ErrCacheMiss      = errors.New("wasmcore: cache miss")
)

// ExecutionError is the typed error carried through the engine and the step
// adapter, matching each row of spec §7's terminal error kind table.
type ExecutionError struct {
	Kind     ErrorKind
	Detail   string
	Cause    error

	// Populated only for the kind that names them.
	FuelConsumed    uint64 // FuelExhausted
	MemoryMiB       uint64 // MemoryLimitExceeded
	TimeoutSeconds  uint64 // ExecutionTimeout
	Capability      string // PermissionDenied
	Resource        string // PermissionDenied
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case ErrorKindFuelExhausted:
		return fmt.Sprintf("%s: consumed=%d", e.Kind, e.FuelConsumed)
	case ErrorKindMemoryLimitExceeded:
		return fmt.Sprintf("%s: limit_mib=%d", e.Kind, e.MemoryMiB)
	case ErrorKindExecutionTimeout:
		return fmt.Sprintf("%s: timeout_seconds=%d", e.Kind, e.TimeoutSeconds)
	case ErrorKindPermissionDenied:
		return fmt.Sprintf("%s: capability=%s resource=%s", e.Kind, e.Capability, e.Resource)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
		}
		return string(e.Kind)
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the pipeline may retry this error kind, per the
// "Retryable by pipeline?" column of spec §7. The core never retries itself
// (§4.7) — this is informational for callers that want to classify the kind.
func (e *ExecutionError) Retryable() bool {
	switch e.Kind {
	case ErrorKindFuelExhausted, ErrorKindMemoryLimitExceeded, ErrorKindExecutionTimeout,
		ErrorKindGuestTrap, ErrorKindHostFunctionError:
		return true
	default:
		return false
	}
}

// KindOf extracts the ErrorKind carried by err, if any, walking Unwrap chains.
func KindOf(err error) (ErrorKind, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}

// IsPermissionDenied reports whether err is a PermissionDenied ExecutionError.
func IsPermissionDenied(err error) bool {
	k, ok := KindOf(err)
	return ok && k == ErrorKindPermissionDenied
}

// IsHashVerificationFailed reports whether err is a HashVerificationFailed ExecutionError.
func IsHashVerificationFailed(err error) bool {
	k, ok := KindOf(err)
	return ok && k == ErrorKindHashVerificationFailed
}

// NewPermissionDenied builds the ExecutionError for a C2 deny (spec §4.2/§7).
func NewPermissionDenied(capability, resource string) *ExecutionError {
	return &ExecutionError{
		Kind:       ErrorKindPermissionDenied,
		Capability: capability,
		Resource:   resource,
	}
}

// NewHashVerificationFailed builds the ExecutionError for an I1 violation.
func NewHashVerificationFailed(detail string) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindHashVerificationFailed, Detail: detail}
}

// NewFuelExhausted builds the ExecutionError for a fuel cap trip (spec §4.6).
func NewFuelExhausted(consumed uint64) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindFuelExhausted, FuelConsumed: consumed}
}

// NewMemoryLimitExceeded builds the ExecutionError for a memory cap trip.
func NewMemoryLimitExceeded(limitMiB uint64) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindMemoryLimitExceeded, MemoryMiB: limitMiB}
}

// NewExecutionTimeout builds the ExecutionError for an epoch deadline trip.
func NewExecutionTimeout(timeoutSeconds uint64) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindExecutionTimeout, TimeoutSeconds: timeoutSeconds}
}

// NewGuestTrap builds the ExecutionError for a guest-side runtime fault.
func NewGuestTrap(detail string, cause error) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindGuestTrap, Detail: detail, Cause: cause}
}

// NewHostFunctionError builds the ExecutionError for a failed host call.
func NewHostFunctionError(detail string, cause error) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindHostFunctionError, Detail: detail, Cause: cause}
}

// NewInvalidOutput builds the ExecutionError for malformed guest output.
func NewInvalidOutput(detail string) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindInvalidOutput, Detail: detail}
}

// NewInvalidModule builds the ExecutionError for a module that fails to compile.
func NewInvalidModule(detail string, cause error) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindInvalidModule, Detail: detail, Cause: cause}
}

// NewInvalidSignature builds the ExecutionError for a failed signature check.
func NewInvalidSignature(detail string) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindInvalidSignature, Detail: detail}
}

// NewModuleNotFound builds the ExecutionError for an unresolvable module id.
func NewModuleNotFound(moduleID string) *ExecutionError {
	return &ExecutionError{Kind: ErrorKindModuleNotFound, Detail: moduleID, Cause: ErrModuleNotFound}
}
