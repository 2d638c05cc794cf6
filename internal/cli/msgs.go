package cli

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Link dotfiles profiles into your home directory"
	MsgInitShort       = "Fetch the repository and write the state file"
	MsgSetupShort      = "Link the files of a profile"
	MsgStatusShort     = "Show the active profile and its links"
	MsgBackupShort     = "Archive the active profile's files"
	MsgDestroyShort    = "Remove the active profile's links and the state file"
	MsgRefreshShort    = "Update the repository and set up the active profile again"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Status messages
	MsgInitDone      = "State written for %d profile(s)."
	MsgSetupDone     = "Profile %s is set up."
	MsgNothingBackup = "None of the files of profile %s exist, nothing to back up."
	MsgDestroyDone   = "Removed %d link(s) and the state file."
	MsgRefreshDone   = "Repository updated."
	MsgNoProfile     = "no active profile set, run 'dotsync setup --profile <name>' first"

	// Flag descriptions
	MsgFlagVerbose   = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagStateFile = "State file path (default ~/.dotsync.state.json, or $DOTSYNC_STATE_FILE)"
	MsgFlagFormat    = "Output format: auto, term, text, json, yaml or toml"
	MsgFlagConfig    = "Config file (.json, .yaml, .yml or .toml)"
	MsgFlagForce     = "Replace an existing state file, keeping its history"
	MsgFlagNoFetch   = "Do not clone or download the repository"
	MsgFlagProfile   = "Profile to set up"
	MsgFlagDryRun    = "Show what setup would do without changing anything"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/init-long.txt
	msgInitLongRaw string
	MsgInitLong    = strings.TrimSpace(msgInitLongRaw)

	//go:embed msgs/init-example.txt
	msgInitExampleRaw string
	MsgInitExample    = strings.TrimRight(msgInitExampleRaw, "\n")

	//go:embed msgs/setup-long.txt
	msgSetupLongRaw string
	MsgSetupLong    = strings.TrimSpace(msgSetupLongRaw)

	//go:embed msgs/setup-example.txt
	msgSetupExampleRaw string
	MsgSetupExample    = strings.TrimRight(msgSetupExampleRaw, "\n")

	//go:embed msgs/status-long.txt
	msgStatusLongRaw string
	MsgStatusLong    = strings.TrimSpace(msgStatusLongRaw)

	//go:embed msgs/status-example.txt
	msgStatusExampleRaw string
	MsgStatusExample    = strings.TrimRight(msgStatusExampleRaw, "\n")

	//go:embed msgs/backup-long.txt
	msgBackupLongRaw string
	MsgBackupLong    = strings.TrimSpace(msgBackupLongRaw)

	//go:embed msgs/destroy-long.txt
	msgDestroyLongRaw string
	MsgDestroyLong    = strings.TrimSpace(msgDestroyLongRaw)

	//go:embed msgs/refresh-long.txt
	msgRefreshLongRaw string
	MsgRefreshLong    = strings.TrimSpace(msgRefreshLongRaw)

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)

	//go:embed msgs/usage-template.txt
	msgUsageTemplateRaw string
	MsgUsageTemplate    = strings.TrimSpace(msgUsageTemplateRaw) + "\n"
)
