// internal/cli/cli_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem under t.TempDir, fake git client
// PURPOSE: Drive the command tree end to end and check output and exit codes

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neelabalan/dotsync/pkg/exitcodes"
	"github.com/neelabalan/dotsync/pkg/filesystem"
	"github.com/neelabalan/dotsync/pkg/lock"
	"github.com/neelabalan/dotsync/pkg/repo"
	"github.com/neelabalan/dotsync/pkg/testutil"
	"github.com/neelabalan/dotsync/pkg/ui/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	home      string
	repoPath  string
	statePath string
	config    string
	git       *cloneGit
	opts      Options
}

// cloneGit writes the repository files on Clone instead of running git.
type cloneGit struct {
	files  map[string]string
	clones int
	pulls  int
}

func (g *cloneGit) Clone(_ context.Context, _, _, destDir string) error {
	g.clones++
	for rel, content := range g.files {
		p := filepath.Join(destDir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			return err
		}
	}
	return os.MkdirAll(filepath.Join(destDir, ".git"), 0755)
}

func (g *cloneGit) Pull(_ context.Context, _ string) (string, error) {
	g.pulls++
	return "0123abcd", nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")

	home := t.TempDir()
	f := &fixture{
		home:      home,
		repoPath:  filepath.Join(home, "dotfiles"),
		statePath: filepath.Join(home, ".dotsync.state.json"),
		config:    filepath.Join(home, "dotsync.json"),
		git: &cloneGit{files: map[string]string{
			".bashrc":               "repo bashrc",
			".vimrc":                "repo vimrc",
			".config/nvim/init.lua": "repo lua",
		}},
	}
	cfg := `{
  "url": "https://github.com/someone/dotfiles.git",
  "path": "~/dotfiles",
  "backup_path": "~/.dotsync/backups",
  "profiles": {
    "work": [".bashrc", ".vimrc", ".config/nvim/init.lua"],
    "home": [".bashrc"]
  }
}`
	require.NoError(t, os.WriteFile(f.config, []byte(cfg), 0644))

	fsys := filesystem.NewOS()
	f.opts = Options{
		FS:      fsys,
		HomeDir: home,
		Fetcher: repo.NewFetcher(fsys, f.git, nil),
		Now:     func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	rootCmd, a := newRoot(f.opts)
	var stdout, stderr bytes.Buffer
	full := append([]string{"--state-file", f.statePath}, args...)
	code := a.execute(context.Background(), rootCmd, full, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (f *fixture) report(t *testing.T, args ...string) display.Report {
	t.Helper()
	stdout, stderr, code := f.run(t, append(args, "--format", "json")...)
	require.Equal(t, exitcodes.Success, code, stderr)
	var rep display.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep), stdout)
	return rep
}

func TestInitSetupStatus(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.home, ".bashrc"), []byte("old bashrc"), 0644))

	rep := f.report(t, "init", "--config", f.config)
	assert.Equal(t, "init", rep.Command)
	assert.Equal(t, []string{"home", "work"}, rep.Profiles)
	assert.Equal(t, "git-https", rep.SourceType)
	assert.Equal(t, 1, f.git.clones)

	rep = f.report(t, "setup", "--profile", "work")
	assert.Equal(t, "work", rep.Profile)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, filepath.Join(f.home, ".dotsync/backups/dotfiles_backup_20240501120000.zip"), rep.Backup)
	assert.Len(t, rep.Files, 3)

	testutil.AssertLinked(t, f.opts.FS, filepath.Join(f.home, ".bashrc"), filepath.Join(f.repoPath, ".bashrc"))

	rep = f.report(t, "status")
	assert.Equal(t, "work", rep.Profile)
	assert.Equal(t, 3, rep.CountByStatus("linked"))
	assert.Equal(t, 1, rep.HistoryLength)
	assert.Equal(t, []string{"dotfiles_backup_20240501120000.zip"}, rep.Backups)

	stdout, _, code := f.run(t, "status", "--format", "text")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, stdout, "active profile: work")
	assert.Contains(t, stdout, "  + .config/nvim/init.lua\n")
}

func TestSetup_DryRunChangesNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.home, ".vimrc"), []byte("old"), 0644))
	f.report(t, "init", "--config", f.config)

	stdout, _, code := f.run(t, "setup", "--profile", "work", "--dry-run", "--format", "text")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, stdout, "(dry run)")
	assert.Contains(t, stdout, "  ! .vimrc (will be backed up and linked)")

	testutil.AssertRegularFile(t, f.opts.FS, filepath.Join(f.home, ".vimrc"), "old")
	testutil.AssertNotExists(t, f.opts.FS, filepath.Join(f.home, ".dotsync"))
}

func TestExitCodes(t *testing.T) {
	f := newFixture(t)

	_, stderr, code := f.run(t, "status")
	assert.Equal(t, exitcodes.StateError, code)
	assert.Contains(t, stderr, "STATE_NOT_FOUND")

	_, _, code = f.run(t, "init", "--config", filepath.Join(f.home, "missing.json"))
	assert.Equal(t, exitcodes.ConfigError, code)

	f.report(t, "init", "--config", f.config)

	_, _, code = f.run(t, "init", "--config", f.config)
	assert.Equal(t, exitcodes.StateError, code)

	_, stderr, code = f.run(t, "status", "--format", "xml")
	assert.Equal(t, exitcodes.GeneralError, code)
	assert.Contains(t, stderr, "unknown format: xml")

	stdout, stderr, code := f.run(t, "setup", "--profile", "nope", "--format", "json")
	assert.Equal(t, exitcodes.UnknownProfile, code)
	assert.Empty(t, stdout)
	var problem display.Problem
	require.NoError(t, json.Unmarshal([]byte(stderr), &problem))
	assert.Equal(t, "UNKNOWN_PROFILE", problem.Code)

	require.NoError(t, os.Chmod(f.statePath, 0644))
	require.NoError(t, os.WriteFile(f.statePath, []byte("{not json"), 0644))
	_, _, code = f.run(t, "status")
	assert.Equal(t, exitcodes.StateCorrupt, code)
}

func TestInit_ForceKeepsHistory(t *testing.T) {
	f := newFixture(t)
	f.report(t, "init", "--config", f.config)
	f.report(t, "setup", "--profile", "home")

	rep := f.report(t, "init", "--config", f.config, "--force")
	assert.Equal(t, "home", rep.Profile)
	assert.Equal(t, 1, rep.HistoryLength)
	assert.Equal(t, 1, f.git.clones, "existing checkout is reused")
}

func TestInit_NoFetch(t *testing.T) {
	f := newFixture(t)
	rep := f.report(t, "init", "--config", f.config, "--no-fetch")
	assert.Equal(t, 0, f.git.clones)
	assert.Equal(t, "git-https", rep.SourceType)
}

func TestBackupDestroyRefresh(t *testing.T) {
	f := newFixture(t)
	f.report(t, "init", "--config", f.config)

	_, stderr, code := f.run(t, "backup")
	assert.Equal(t, exitcodes.GeneralError, code)
	assert.Contains(t, stderr, "no active profile")

	f.report(t, "setup", "--profile", "work")

	rep := f.report(t, "backup")
	assert.Equal(t, "work", rep.Profile)
	assert.FileExists(t, rep.Backup)

	rep = f.report(t, "refresh")
	assert.Equal(t, "refresh", rep.Command)
	assert.Equal(t, 1, f.git.pulls)
	assert.Equal(t, 2, rep.HistoryLength)

	rep = f.report(t, "destroy")
	assert.Len(t, rep.Removed, 3)
	testutil.AssertNotExists(t, f.opts.FS, filepath.Join(f.home, ".bashrc"))
	testutil.AssertNotExists(t, f.opts.FS, f.statePath)
	assert.FileExists(t, filepath.Join(f.repoPath, ".bashrc"))
}

func TestFetchWaitsForRunLock(t *testing.T) {
	f := newFixture(t)
	held, err := lock.Acquire(f.statePath)
	require.NoError(t, err)

	_, stderr, code := f.run(t, "init", "--config", f.config)
	assert.Equal(t, exitcodes.ConcurrentRun, code, stderr)
	assert.Equal(t, 0, f.git.clones, "init must not clone while another run holds the lock")
	require.NoError(t, held.Release())

	f.report(t, "init", "--config", f.config)
	f.report(t, "setup", "--profile", "home")

	held, err = lock.Acquire(f.statePath)
	require.NoError(t, err)
	defer held.Release()

	_, stderr, code = f.run(t, "refresh")
	assert.Equal(t, exitcodes.ConcurrentRun, code, stderr)
	assert.Equal(t, 0, f.git.pulls, "refresh must not pull while another run holds the lock")
}

func TestVersionAndTopics(t *testing.T) {
	f := newFixture(t)

	stdout, _, code := f.run(t, "version")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, stdout, "dotsync version")

	stdout, _, code = f.run(t, "topics")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, stdout, "profiles")
	assert.Contains(t, stdout, "--dry-run")

	stdout, _, code = f.run(t, "help", "exit-codes")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, stdout, "another run holds the lock")

	stdout, _, code = f.run(t, "completion", "bash")
	require.Equal(t, exitcodes.Success, code)
	assert.Contains(t, stdout, "dotsync")
}

func TestStatePathResolution(t *testing.T) {
	a := &app{}
	t.Setenv("DOTSYNC_STATE_FILE", "")

	p, err := a.statePath("/home/u")
	require.NoError(t, err)
	assert.Equal(t, "/home/u/.dotsync.state.json", p)

	t.Setenv("DOTSYNC_STATE_FILE", "~/state/s.json")
	p, err = a.statePath("/home/u")
	require.NoError(t, err)
	assert.Equal(t, "/home/u/state/s.json", p)

	a.stateFile = "/tmp/x.json"
	p, err = a.statePath("/home/u")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.json", p)
}

func TestNewRootCmd(t *testing.T) {
	rootCmd := NewRootCmd()
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"init", "setup", "status", "backup", "destroy", "refresh", "version", "completion", "topics"} {
		assert.Contains(t, names, want)
	}

	setup, _, err := rootCmd.Find([]string{"setup"})
	require.NoError(t, err)
	assert.NotNil(t, setup.Flags().Lookup("dry-run"))
	assert.Equal(t, "core", setup.GroupID)
}
