// Package exitcodes maps dotsync errors to process exit codes so scripts can
// tell failures apart.
package exitcodes

import (
	"context"
	stderrors "errors"

	"github.com/neelabalan/dotsync/pkg/errors"
)

const (
	// Success - the run reached Done
	Success = 0

	// GeneralError - anything without a more specific code
	GeneralError = 1

	// UnknownProfile - the requested profile is not in the state file (user-correctable)
	UnknownProfile = 2

	// BackupError - an archive could not be written or an original could not be removed
	BackupError = 3

	// InstallError - a symlink could not be created
	InstallError = 4

	// StateCorrupt - the state file is unreadable or invalid
	StateCorrupt = 5

	// ConcurrentRun - another run holds the lock (recoverable)
	ConcurrentRun = 6

	// StateError - the state file is missing, already exists, or could not be written
	StateError = 7

	// ConfigError - the config file could not be read, parsed or validated
	ConfigError = 8

	// FetchError - cloning, pulling or downloading the repository failed (recoverable)
	FetchError = 9

	// Cancelled - interrupted by the user (recoverable)
	Cancelled = 10
)

var byCode = map[errors.ErrorCode]int{
	errors.ErrUnknownProfile: UnknownProfile,
	errors.ErrBackupIO:       BackupError,
	errors.ErrInstall:        InstallError,
	errors.ErrStateCorrupt:   StateCorrupt,
	errors.ErrConcurrentRun:  ConcurrentRun,
	errors.ErrStateNotFound:  StateError,
	errors.ErrStateExists:    StateError,
	errors.ErrStateWrite:     StateError,
	errors.ErrConfigLoad:     ConfigError,
	errors.ErrConfigParse:    ConfigError,
	errors.ErrConfigValid:    ConfigError,
	errors.ErrRepoFetch:      FetchError,
	errors.ErrCancelled:      Cancelled,
}

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// FromError determines the exit code for err.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}

	if code, ok := byCode[errors.GetErrorCode(err)]; ok {
		return code
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return GeneralError
}

// IsRecoverable returns true if rerunning the same command may succeed
// without user changes.
func IsRecoverable(code int) bool {
	switch code {
	case ConcurrentRun, FetchError, Cancelled:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the exit code.
func Description(code int) string {
	switch code {
	case Success:
		return "success"
	case GeneralError:
		return "error"
	case UnknownProfile:
		return "unknown profile"
	case BackupError:
		return "backup error"
	case InstallError:
		return "symlink install error"
	case StateCorrupt:
		return "state file corrupt"
	case ConcurrentRun:
		return "another run in progress (recoverable)"
	case StateError:
		return "state file error"
	case ConfigError:
		return "configuration error"
	case FetchError:
		return "repository fetch error (recoverable)"
	case Cancelled:
		return "cancelled (recoverable)"
	default:
		return "unknown error"
	}
}
