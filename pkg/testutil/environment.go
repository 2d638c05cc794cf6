// pkg/testutil/environment.go
// DEPENDENCIES: None (base test utilities)
// PURPOSE: Build a home directory, repository and state file for tests

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/neelabalan/dotsync/pkg/filesystem"
	"github.com/neelabalan/dotsync/pkg/state"
	"github.com/neelabalan/dotsync/pkg/types"
)

// EnvType defines the type of test environment
type EnvType int

const (
	EnvMemoryOnly EnvType = iota // Pure in-memory, no symlink support
	EnvIsolated                  // Real filesystem in temp directory
)

// TestEnvironment is a home directory with a dotfiles repository in it.
type TestEnvironment struct {
	HomeDir   string
	RepoPath  string
	BackupDir string
	StatePath string
	FS        types.FS
	Type      EnvType

	t *testing.T
}

// NewTestEnvironment creates the directories of a test environment. The
// isolated environment also points XDG_STATE_HOME into the temp directory
// so log files stay out of the real home.
func NewTestEnvironment(t *testing.T, envType EnvType) *TestEnvironment {
	t.Helper()

	env := &TestEnvironment{t: t, Type: envType}
	switch envType {
	case EnvMemoryOnly:
		env.HomeDir = "/virtual/home"
		env.FS = filesystem.NewMemory()
	default:
		root := t.TempDir()
		env.HomeDir = filepath.Join(root, "home")
		env.FS = filesystem.NewOS()
		t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	}
	env.RepoPath = filepath.Join(env.HomeDir, "dotfiles")
	env.BackupDir = filepath.Join(env.HomeDir, ".dotsync", "backups")
	env.StatePath = filepath.Join(env.HomeDir, ".dotsync.state.json")

	for _, dir := range []string{env.HomeDir, env.RepoPath} {
		if err := env.FS.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	return env
}

// Config returns a config whose paths point into the environment.
func (env *TestEnvironment) Config(profiles map[string][]string) *types.Config {
	return &types.Config{
		URL:        "https://github.com/someone/dotfiles.git",
		Path:       "~/dotfiles",
		BackupPath: "~/.dotsync/backups",
		Profiles:   profiles,
	}
}

// WithProfiles writes every profile file into the repository and saves a
// fresh state file for them.
func (env *TestEnvironment) WithProfiles(profiles map[string][]string) *types.State {
	env.t.Helper()
	for _, files := range profiles {
		for _, rel := range files {
			env.WriteRepoFile(rel, "repo:"+rel)
		}
	}
	st := state.FromConfig(env.Config(profiles), types.SourceGitHTTPS)
	if err := state.NewStore(env.FS).Save(st, env.StatePath); err != nil {
		env.t.Fatalf("Failed to save state: %v", err)
	}
	return st
}

// WriteRepoFile writes content at RepoPath/rel.
func (env *TestEnvironment) WriteRepoFile(rel, content string) string {
	env.t.Helper()
	return writeFile(env.t, env.FS, filepath.Join(env.RepoPath, rel), content)
}

// WriteHomeFile writes content at HomeDir/rel.
func (env *TestEnvironment) WriteHomeFile(rel, content string) string {
	env.t.Helper()
	return writeFile(env.t, env.FS, filepath.Join(env.HomeDir, rel), content)
}

// Home returns the absolute home path of rel.
func (env *TestEnvironment) Home(rel string) string {
	return filepath.Join(env.HomeDir, rel)
}

// Repo returns the absolute repository path of rel.
func (env *TestEnvironment) Repo(rel string) string {
	return filepath.Join(env.RepoPath, rel)
}

func writeFile(t *testing.T, fsys types.FS, path, content string) string {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := fsys.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content at path or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}
