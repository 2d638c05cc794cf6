// Package lock provides the exclusive run lock that serializes engine runs
// against one state file.
package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/paths"
)

// Lock is a held run lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock guarding statePath without waiting. When another
// process or run holds it, Acquire fails with CONCURRENT_RUN.
func Acquire(statePath string) (*Lock, error) {
	logger := logging.GetLogger("lock")
	path := paths.LockFilePath(statePath)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "failed to create lock directory for %s", path).
			WithDetail("path", path)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "failed to lock %s", path).
			WithDetail("path", path)
	}
	if !locked {
		e := errors.Newf(errors.ErrConcurrentRun, "another dotsync run holds %s", path).
			WithDetail("path", path)
		if pid := Holder(statePath); pid > 0 {
			e = e.WithDetail("pid", pid)
		}
		return nil, e
	}

	// Informational only; the flock is what excludes other runs.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Could not record lock holder")
	}
	logger.Debug().Str("path", path).Msg("Lock acquired")
	return &Lock{fl: fl}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "failed to unlock %s", l.fl.Path())
	}
	logger := logging.GetLogger("lock")
	logger.Debug().Str("path", l.fl.Path()).Msg("Lock released")
	return nil
}

// Holder returns the PID recorded by the last holder of the lock for
// statePath, or 0 when unknown.
func Holder(statePath string) int {
	data, err := os.ReadFile(paths.LockFilePath(statePath))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
