// Package paths provides centralized path handling for dotsync.
//
// It handles:
//
//   - Home directory discovery and "~" expansion
//   - The location of the state file and its lock file
//   - XDG-compliant locations for logs
//   - Validation of profile-relative paths
//
// # Environment Variables
//
//   - DOTSYNC_STATE_FILE: Override the state file (default: ~/.dotsync.state.json)
//   - XDG_STATE_HOME: Base for the log file (default: ~/.local/state)
//   - HOME: The home directory dotfiles are linked into
package paths
