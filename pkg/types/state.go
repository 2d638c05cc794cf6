package types

import (
	"time"
)

// SourceType describes where the dotfiles repository is fetched from.
type SourceType string

const (
	SourceZip      SourceType = "zip"
	SourceGitHTTPS SourceType = "git-https"
	SourceGitSSH   SourceType = "git-ssh"
)

// Config is the user-authored configuration read once by init.
type Config struct {
	URL        string              `json:"url" koanf:"url"`
	Branch     string              `json:"branch,omitempty" koanf:"branch"`
	Path       string              `json:"path" koanf:"path"`
	BackupPath string              `json:"backup_path" koanf:"backup_path"`
	Profiles   map[string][]string `json:"profiles" koanf:"profiles"`
}

// HistoryEntry records one completed setup run.
type HistoryEntry struct {
	CreatedAt time.Time `json:"created_at"`
	// Backup is the archive holding the files displaced by this run, nil when
	// nothing needed backing up.
	Backup *string  `json:"backup"`
	Files  []string `json:"files"`
}

// State is the durable record of configuration, active profile and history.
// It is only ever replaced on disk as a whole.
type State struct {
	Config

	ActiveProfile *string        `json:"active_profile"`
	History       []HistoryEntry `json:"history"`
	SourceType    SourceType     `json:"source_type,omitempty"`
}

// LastEntry returns the most recent history entry, or nil.
func (s *State) LastEntry() *HistoryEntry {
	if s == nil || len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}

// Active returns the active profile name, or "" when none is set.
func (s *State) Active() string {
	if s == nil || s.ActiveProfile == nil {
		return ""
	}
	return *s.ActiveProfile
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Config:     s.Config.Clone(),
		SourceType: s.SourceType,
	}
	if s.ActiveProfile != nil {
		p := *s.ActiveProfile
		out.ActiveProfile = &p
	}
	out.History = make([]HistoryEntry, len(s.History))
	for i, e := range s.History {
		out.History[i] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	out := c
	out.Profiles = make(map[string][]string, len(c.Profiles))
	for name, files := range c.Profiles {
		out.Profiles[name] = copyStrings(files)
	}
	return out
}

// Clone returns a deep copy of the entry.
func (e HistoryEntry) Clone() HistoryEntry {
	out := HistoryEntry{
		CreatedAt: e.CreatedAt,
		Files:     copyStrings(e.Files),
	}
	if e.Backup != nil {
		b := *e.Backup
		out.Backup = &b
	}
	return out
}

// copyStrings copies s, turning nil into an empty slice so that JSON output
// always carries arrays.
func copyStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
