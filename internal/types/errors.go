package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind enumerates the error taxonomy from spec.md §7. It is a sum type
// dispatched exhaustively at every site that maps an error to a CLI exit
// code or a Host Status lastError category.
type ErrorKind string

const (
	KindConfig       ErrorKind = "ConfigError"
	KindPrecondition ErrorKind = "PreconditionError"
	KindNetwork      ErrorKind = "NetworkError"
	KindIntegrity    ErrorKind = "IntegrityError"
	KindBlockDevice  ErrorKind = "BlockDeviceError"
	KindFilesystem   ErrorKind = "FilesystemError"
	KindBoot         ErrorKind = "BootError"
	KindHook         ErrorKind = "HookError"
	KindHealthCheck  ErrorKind = "HealthCheckError"
	KindInternal     ErrorKind = "Internal"
)

// ExitCode maps an ErrorKind to the CLI exit code families from spec.md §6:
// 1 = user/config error, 2 = runtime error, 3 = state precondition error.
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindConfig:
		return 1
	case KindPrecondition:
		return 3
	case KindInternal:
		return 2
	default:
		return 2
	}
}

// ServicingError is the concrete error type carried in Host Status lastError
// and surfaced as the CLI's terminal error. It always names the offending
// subsystem so `get status` can show it verbatim.
type ServicingError struct {
	Kind      ErrorKind
	Subsystem string
	Cause     error
}

func (e *ServicingError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s in %s", e.Kind, e.Subsystem)
	}
	return fmt.Sprintf("%s in %s: %v", e.Kind, e.Subsystem, e.Cause)
}

func (e *ServicingError) Unwrap() error { return e.Cause }

// NewError wraps cause with a subsystem tag and kind, preserving the
// underlying stack trace via pkg/errors.
func NewError(kind ErrorKind, subsystem string, cause error) *ServicingError {
	return &ServicingError{Kind: kind, Subsystem: subsystem, Cause: errors.WithStack(cause)}
}

// Errorf builds a ServicingError directly from a format string.
func Errorf(kind ErrorKind, subsystem, format string, args ...interface{}) *ServicingError {
	return &ServicingError{Kind: kind, Subsystem: subsystem, Cause: errors.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err if it (or something it wraps) is a
// *ServicingError, defaulting to KindInternal otherwise — an invariant
// breach by definition, since every expected failure path should already be
// wrapped into the taxonomy by the component that detected it.
func KindOf(err error) ErrorKind {
	var se *ServicingError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsRecoverable reports whether err belongs to a class the engine may retry
// locally without surfacing to the user (spec.md §7 propagation policy).
// Only NetworkError is reported recoverable; every other kind, RAID errors
// included, is not.
func IsRecoverable(err error) bool {
	return KindOf(err) == KindNetwork
}
