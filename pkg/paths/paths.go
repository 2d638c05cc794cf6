package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/neelabalan/dotsync/pkg/errors"
)

// Environment variable names
const (
	// EnvStateFile overrides the location of the state file
	EnvStateFile = "DOTSYNC_STATE_FILE"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"

	// EnvXDGStateHome is the XDG state base directory variable
	EnvXDGStateHome = "XDG_STATE_HOME"
)

const (
	// DefaultStateFile is where the state file lives unless overridden
	DefaultStateFile = "~/.dotsync.state.json"

	// DotsyncDirName is the directory name for dotsync-specific files
	DotsyncDirName = "dotsync"

	// LogFileName is the name of the log file
	LogFileName = "dotsync.log"

	// LockSuffix is appended to the state file path to name its lock file
	LockSuffix = ".lock"
)

// GetHomeDirectory returns the user's home directory with proper error handling
func GetHomeDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Try the HOME environment variable as a fallback
		if home := os.Getenv(EnvHome); home != "" {
			return home, nil
		}
		return "", errors.Wrapf(err, errors.ErrInternal, "failed to get home directory")
	}
	return homeDir, nil
}

// ExpandHome expands a leading "~" or "~/" to the home directory.
// Other paths, including "~user" forms, are returned unchanged.
func ExpandHome(path string) (string, error) {
	if !hasHomePrefix(path) {
		return path, nil
	}
	homeDir, err := GetHomeDirectory()
	if err != nil {
		return "", err
	}
	return ExpandWith(path, homeDir), nil
}

// ExpandWith is ExpandHome against an explicit home directory.
func ExpandWith(path, homeDir string) string {
	if !hasHomePrefix(path) {
		return path
	}
	if len(path) == 1 {
		return homeDir
	}
	return filepath.Join(homeDir, path[2:])
}

// ResolveWith expands "~" against homeDir and anchors a relative result at
// homeDir.
func ResolveWith(path, homeDir string) string {
	p := ExpandWith(path, homeDir)
	if !filepath.IsAbs(p) {
		p = filepath.Join(homeDir, p)
	}
	return filepath.Clean(p)
}

func hasHomePrefix(path string) bool {
	if path == "" || path[0] != '~' {
		return false
	}
	return len(path) == 1 || path[1] == '/' || path[1] == filepath.Separator
}

// ResolveDir expands "~" and makes the path absolute.
func ResolveDir(path string) (string, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrInvalidInput, "failed to get absolute path for %s", path)
	}
	return abs, nil
}

// StateFilePath returns the state file location, honouring DOTSYNC_STATE_FILE.
func StateFilePath() (string, error) {
	if p := os.Getenv(EnvStateFile); p != "" {
		return ResolveDir(p)
	}
	return ResolveDir(DefaultStateFile)
}

// LockFilePath returns the lock file guarding the given state file.
func LockFilePath(statePath string) string {
	return statePath + LockSuffix
}

// StateHome returns the XDG state base directory.
// XDG_STATE_HOME is read at call time so tests can override it.
func StateHome() string {
	if dir := os.Getenv(EnvXDGStateHome); dir != "" {
		return dir
	}
	return xdg.StateHome
}

// LogFilePath returns the path to the dotsync log file
func LogFilePath() string {
	return filepath.Join(StateHome(), DotsyncDirName, LogFileName)
}

// ValidateRelPath checks that p can be used on both sides of the
// home/RelPath <-> repo/RelPath mapping.
func ValidateRelPath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New(errors.ErrInvalidInput, "empty path")
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "~") {
		return errors.Newf(errors.ErrInvalidInput, "path %q must be relative to the home directory", p)
	}
	clean := filepath.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errors.Newf(errors.ErrInvalidInput, "path %q escapes the home directory", p)
	}
	return nil
}
