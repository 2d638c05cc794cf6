package exitcodes

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/neelabalan/dotsync/pkg/errors"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, Success},
		{"plain error", stderrors.New("boom"), GeneralError},
		{"unknown profile", errors.New(errors.ErrUnknownProfile, "x"), UnknownProfile},
		{"backup io", errors.New(errors.ErrBackupIO, "x"), BackupError},
		{"install", errors.New(errors.ErrInstall, "x"), InstallError},
		{"state corrupt", errors.New(errors.ErrStateCorrupt, "x"), StateCorrupt},
		{"concurrent run", errors.New(errors.ErrConcurrentRun, "x"), ConcurrentRun},
		{"state not found", errors.New(errors.ErrStateNotFound, "x"), StateError},
		{"state exists", errors.New(errors.ErrStateExists, "x"), StateError},
		{"state write", errors.New(errors.ErrStateWrite, "x"), StateError},
		{"config parse", errors.New(errors.ErrConfigParse, "x"), ConfigError},
		{"config invalid", errors.New(errors.ErrConfigValid, "x"), ConfigError},
		{"repo fetch", errors.New(errors.ErrRepoFetch, "x"), FetchError},
		{"cancelled code", errors.New(errors.ErrCancelled, "x"), Cancelled},
		{"bare context canceled", fmt.Errorf("run: %w", context.Canceled), Cancelled},
		{"wrapped coded error", fmt.Errorf("cli: %w", errors.New(errors.ErrInstall, "x")), InstallError},
		{"internal", errors.New(errors.ErrInternal, "x"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got != tt.expected {
				t.Errorf("FromError(%v) = %d (%s), want %d (%s)",
					tt.err, got, Description(got), tt.expected, Description(tt.expected))
			}
		})
	}
}

func TestExitError(t *testing.T) {
	inner := stderrors.New("inner error")
	exitErr := NewExitError(inner, ConcurrentRun)

	if exitErr.Error() != "inner error" {
		t.Errorf("expected error message 'inner error', got '%s'", exitErr.Error())
	}
	if stderrors.Unwrap(exitErr) != inner {
		t.Error("Unwrap should return inner error")
	}
	if FromError(fmt.Errorf("wrapped: %w", exitErr)) != ConcurrentRun {
		t.Error("FromError should extract code from a wrapped ExitError")
	}
}

func TestCodesAreDistinct(t *testing.T) {
	seen := map[int]string{}
	for _, code := range []int{Success, GeneralError, UnknownProfile, BackupError, InstallError,
		StateCorrupt, ConcurrentRun, StateError, ConfigError, FetchError, Cancelled} {
		desc := Description(code)
		if prev, ok := seen[code]; ok {
			t.Errorf("code %d reused by %q and %q", code, prev, desc)
		}
		if desc == "unknown error" {
			t.Errorf("code %d has no description", code)
		}
		seen[code] = desc
	}
}

func TestIsRecoverable(t *testing.T) {
	for _, code := range []int{ConcurrentRun, FetchError, Cancelled} {
		if !IsRecoverable(code) {
			t.Errorf("code %d should be recoverable", code)
		}
	}
	for _, code := range []int{UnknownProfile, BackupError, InstallError, StateCorrupt, ConfigError} {
		if IsRecoverable(code) {
			t.Errorf("code %d should not be recoverable", code)
		}
	}
}
