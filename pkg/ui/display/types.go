package display

import (
	"time"
)

// Report is the top-level structure every command renders. Renderers for
// structured formats encode it directly; the text and terminal renderers
// lay it out for people.
type Report struct {
	Command string `json:"command" yaml:"command" toml:"command"`
	// Optional message like "Profile work is set up."
	Message string `json:"message,omitempty" yaml:"message,omitempty" toml:"message,omitempty"`
	DryRun  bool   `json:"dryRun" yaml:"dryRun" toml:"dryRun"`

	RunID         string   `json:"runId,omitempty" yaml:"runId,omitempty" toml:"runId,omitempty"`
	Profile       string   `json:"profile,omitempty" yaml:"profile,omitempty" toml:"profile,omitempty"`
	Profiles      []string `json:"profiles,omitempty" yaml:"profiles,omitempty" toml:"profiles,omitempty"`
	URL           string   `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
	SourceType    string   `json:"sourceType,omitempty" yaml:"sourceType,omitempty" toml:"sourceType,omitempty"`
	StatePath     string   `json:"statePath,omitempty" yaml:"statePath,omitempty" toml:"statePath,omitempty"`
	RepoPath      string   `json:"repoPath,omitempty" yaml:"repoPath,omitempty" toml:"repoPath,omitempty"`
	BackupDir     string   `json:"backupDir,omitempty" yaml:"backupDir,omitempty" toml:"backupDir,omitempty"`
	Backup        string   `json:"backup,omitempty" yaml:"backup,omitempty" toml:"backup,omitempty"`
	Backups       []string `json:"backups,omitempty" yaml:"backups,omitempty" toml:"backups,omitempty"`
	Removed       []string `json:"removed,omitempty" yaml:"removed,omitempty" toml:"removed,omitempty"`
	HistoryLength int      `json:"historyLength" yaml:"historyLength" toml:"historyLength"`

	Files   []File `json:"files" yaml:"files" toml:"files"`
	LastRun *Run   `json:"lastRun,omitempty" yaml:"lastRun,omitempty" toml:"lastRun,omitempty"`

	Timestamp time.Time `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
}

// File is one profile path and how it currently relates to the repository.
type File struct {
	Path   string `json:"path" yaml:"path" toml:"path"`
	Target string `json:"target" yaml:"target" toml:"target"`
	Status string `json:"status" yaml:"status" toml:"status"` // "linked", "missing", "conflict"
}

// Run summarizes one history entry.
type Run struct {
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt" toml:"createdAt"`
	Backup    string    `json:"backup,omitempty" yaml:"backup,omitempty" toml:"backup,omitempty"`
	Files     []string  `json:"files" yaml:"files" toml:"files"`
}

// CountByStatus returns how many files carry status.
func (r *Report) CountByStatus(status string) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// HasProfile reports whether the report concerns a profile.
func (r *Report) HasProfile() bool {
	return r.Profile != ""
}

// Problem is the machine-readable form of a failed command.
type Problem struct {
	Error   string            `json:"error" yaml:"error" toml:"error"`
	Code    string            `json:"code,omitempty" yaml:"code,omitempty" toml:"code,omitempty"`
	Details map[string]string `json:"details,omitempty" yaml:"details,omitempty" toml:"details,omitempty"`
}

// Message is the machine-readable form of a plain message.
type Message struct {
	Message string `json:"message" yaml:"message" toml:"message"`
}
