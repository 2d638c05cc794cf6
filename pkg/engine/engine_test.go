// pkg/engine/engine_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem (t.TempDir), gofrs/flock
// PURPOSE: Test the setup state machine end to end, including abort paths and
// concurrent runs against one state file

package engine_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neelabalan/dotsync/pkg/backup"
	"github.com/neelabalan/dotsync/pkg/engine"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/filesystem"
	"github.com/neelabalan/dotsync/pkg/lock"
	"github.com/neelabalan/dotsync/pkg/state"
	"github.com/neelabalan/dotsync/pkg/testutil"
	"github.com/neelabalan/dotsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	t         *testing.T
	home      string
	repo      string
	backups   string
	statePath string
	fs        types.FS
	phases    []engine.Phase
	clock     time.Time
}

func newFixture(t *testing.T, profiles map[string][]string) *fixture {
	t.Helper()
	env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)
	env.WithProfiles(profiles)
	return &fixture{
		t:         t,
		home:      env.HomeDir,
		repo:      env.RepoPath,
		backups:   env.BackupDir,
		statePath: env.StatePath,
		fs:        env.FS,
		clock:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) engine(opts ...func(*engine.Options)) *engine.Engine {
	f.t.Helper()
	o := engine.Options{
		FS:        f.fs,
		StatePath: f.statePath,
		HomeDir:   f.home,
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Second)
			return f.clock
		},
		OnTransition: func(_, to engine.Phase) { f.phases = append(f.phases, to) },
	}
	for _, opt := range opts {
		opt(&o)
	}
	e, err := engine.New(o)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) writeHome(rel, content string) {
	f.t.Helper()
	p := filepath.Join(f.home, rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(f.t, os.WriteFile(p, []byte(content), 0644))
}

func (f *fixture) stateBytes() []byte {
	f.t.Helper()
	data, err := os.ReadFile(f.statePath)
	require.NoError(f.t, err)
	return data
}

func (f *fixture) loadState() *types.State {
	f.t.Helper()
	st, err := state.NewStore(f.fs).Load(f.statePath)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) assertLinked(rel string) {
	f.t.Helper()
	testutil.AssertLinked(f.t, f.fs, filepath.Join(f.home, rel), filepath.Join(f.repo, rel))
}

func (f *fixture) archives() []string {
	f.t.Helper()
	list, err := backup.List(f.fs, f.backups)
	require.NoError(f.t, err)
	return list
}

func TestSetup_BacksUpExistingFile(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})
	f.writeHome(".bashrc", "X")

	result, err := f.engine().Setup(context.Background(), "default")
	require.NoError(t, err)

	require.NotNil(t, result.Entry.Backup)
	items, err := backup.Contents(f.fs, *result.Entry.Backup)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ".bashrc", items[0].Name)
	assert.Equal(t, "X", string(items[0].Data))

	f.assertLinked(".bashrc")

	st := f.loadState()
	assert.Equal(t, "default", st.Active())
	require.Len(t, st.History, 1)
	assert.Equal(t, []string{".bashrc"}, st.History[0].Files)
	require.NotNil(t, st.History[0].Backup)
	assert.Equal(t, *result.Entry.Backup, *st.History[0].Backup)
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, []engine.Phase{
		engine.Resolving, engine.BackingUp, engine.Installing, engine.Committing, engine.Done,
	}, f.phases)
}

func TestSetup_NoExistingFileMeansNoBackup(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})

	result, err := f.engine().Setup(context.Background(), "default")
	require.NoError(t, err)

	assert.Nil(t, result.Entry.Backup)
	assert.Empty(t, f.archives())
	f.assertLinked(".bashrc")

	st := f.loadState()
	require.Len(t, st.History, 1)
	assert.Nil(t, st.History[0].Backup)
	assert.Contains(t, string(f.stateBytes()), `"backup": null`)
}

func TestSetup_SecondRunIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc", ".config/git/config"}})
	f.writeHome(".bashrc", "X")
	f.writeHome(".config/git/config", "Y")
	e := f.engine()

	first, err := e.Setup(context.Background(), "default")
	require.NoError(t, err)
	require.NotNil(t, first.Entry.Backup)

	second, err := e.Setup(context.Background(), "default")
	require.NoError(t, err)
	assert.Nil(t, second.Entry.Backup)

	assert.Len(t, f.archives(), 1)
	st := f.loadState()
	require.Len(t, st.History, 2)
	assert.Nil(t, st.History[1].Backup)
	assert.True(t, st.History[1].CreatedAt.After(st.History[0].CreatedAt))
	f.assertLinked(".bashrc")
	f.assertLinked(".config/git/config")
}

func TestSetup_NoLoss(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc", ".vimrc", ".gitconfig", ".zshrc"}})
	originals := map[string]string{
		".bashrc":    "bash settings",
		".vimrc":     "set number",
		".gitconfig": "[user]\n\tname = someone\n",
	}
	for rel, content := range originals {
		f.writeHome(rel, content)
	}
	// Already correct, must be left untouched.
	require.NoError(t, os.Symlink(filepath.Join(f.repo, ".zshrc"), filepath.Join(f.home, ".zshrc")))
	before, err := os.Lstat(filepath.Join(f.home, ".zshrc"))
	require.NoError(t, err)

	result, err := f.engine().Setup(context.Background(), "default")
	require.NoError(t, err)
	require.NotNil(t, result.Entry.Backup)

	items, err := backup.Contents(f.fs, *result.Entry.Backup)
	require.NoError(t, err)
	archived := make(map[string]string, len(items))
	for _, item := range items {
		archived[item.Name] = string(item.Data)
	}
	assert.Equal(t, originals, archived)

	after, err := os.Lstat(filepath.Join(f.home, ".zshrc"))
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after))
}

func TestSetup_UnknownProfileChangesNothing(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})
	f.writeHome(".bashrc", "X")
	stateBefore := f.stateBytes()

	_, err := f.engine().Setup(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnknownProfile))

	assert.Equal(t, stateBefore, f.stateBytes())
	data, err := os.ReadFile(filepath.Join(f.home, ".bashrc"))
	require.NoError(t, err)
	assert.Equal(t, "X", string(data))
	assert.Empty(t, f.archives())
	assert.Equal(t, []engine.Phase{engine.Resolving, engine.Aborted}, f.phases)
}

func TestSetup_MissingAndCorruptState(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})

	require.NoError(t, os.Chmod(f.statePath, 0644))
	require.NoError(t, os.WriteFile(f.statePath, []byte(`{"url":`), 0644))
	_, err := f.engine().Setup(context.Background(), "default")
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateCorrupt))

	require.NoError(t, os.Remove(f.statePath))
	_, err = f.engine().Setup(context.Background(), "default")
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateNotFound))
}

// failingFS fails Symlink or CreateTemp for matching paths.
type failingFS struct {
	types.FS
	symlinkErr  func(newname string) error
	createErrIn string
}

func (f *failingFS) Symlink(oldname, newname string) error {
	if f.symlinkErr != nil {
		if err := f.symlinkErr(newname); err != nil {
			return err
		}
	}
	return f.FS.Symlink(oldname, newname)
}

func (f *failingFS) CreateTemp(dir, pattern string) (types.File, error) {
	if f.createErrIn != "" && dir == f.createErrIn {
		return nil, os.ErrPermission
	}
	return f.FS.CreateTemp(dir, pattern)
}

func TestSetup_InstallFailureAbortsBeforeCommit(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".a", ".b", ".c"}})
	stateBefore := f.stateBytes()
	fsys := &failingFS{FS: f.fs, symlinkErr: func(newname string) error {
		if strings.Contains(filepath.Base(newname), ".b.") {
			return os.ErrPermission
		}
		return nil
	}}

	_, err := f.engine(func(o *engine.Options) { o.FS = fsys }).Setup(context.Background(), "default")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInstall))
	assert.Equal(t, filepath.Join(f.home, ".b"), errors.DetailString(err, "path"))

	assert.Equal(t, stateBefore, f.stateBytes())
	f.assertLinked(".a")
	_, err = os.Lstat(filepath.Join(f.home, ".c"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, engine.Aborted, f.phases[len(f.phases)-1])
	assert.Contains(t, f.phases, engine.Installing)
	assert.NotContains(t, f.phases, engine.Committing)
}

func TestSetup_CommitFailureKeepsPreviousState(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})
	stateBefore := f.stateBytes()
	fsys := &failingFS{FS: f.fs, createErrIn: filepath.Dir(f.statePath)}

	_, err := f.engine(func(o *engine.Options) { o.FS = fsys }).Setup(context.Background(), "default")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateWrite))

	assert.Equal(t, stateBefore, f.stateBytes())
	assert.Equal(t, []engine.Phase{
		engine.Resolving, engine.BackingUp, engine.Installing, engine.Committing, engine.Aborted,
	}, f.phases)
}

func TestSetup_Cancelled(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})
	f.writeHome(".bashrc", "X")
	stateBefore := f.stateBytes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine().Setup(ctx, "default")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCancelled))
	assert.Equal(t, stateBefore, f.stateBytes())
	assert.Empty(t, f.archives())
	assert.Equal(t, []engine.Phase{engine.Resolving, engine.Aborted}, f.phases)
}

func TestSetup_LockHeldFailsFastWithoutChanges(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})
	f.writeHome(".bashrc", "X")
	stateBefore := f.stateBytes()

	held, err := lock.Acquire(f.statePath)
	require.NoError(t, err)
	defer held.Release()

	_, err = f.engine().Setup(context.Background(), "default")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConcurrentRun))

	assert.Equal(t, stateBefore, f.stateBytes())
	data, err := os.ReadFile(filepath.Join(f.home, ".bashrc"))
	require.NoError(t, err)
	assert.Equal(t, "X", string(data))
	assert.Empty(t, f.archives())
	assert.Empty(t, f.phases)
}

func TestSetup_ConcurrentRuns(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})
	f.writeHome(".bashrc", "X")

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := f.engine(func(o *engine.Options) {
		o.OnTransition = func(_, to engine.Phase) {
			if to == engine.BackingUp {
				close(started)
				<-release
			}
		}
	})
	other := f.engine(func(o *engine.Options) { o.OnTransition = nil })

	var g errgroup.Group
	g.Go(func() error {
		_, err := blocking.Setup(context.Background(), "default")
		return err
	})

	<-started
	_, err := other.Setup(context.Background(), "default")
	close(release)

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConcurrentRun))
	require.NoError(t, g.Wait())

	st := f.loadState()
	assert.Len(t, st.History, 1)
	assert.Len(t, f.archives(), 1)
	f.assertLinked(".bashrc")
}

func TestSetup_BackupFailureAbortsBeforeInstall(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})
	f.writeHome(".bashrc", "X")
	stateBefore := f.stateBytes()
	fsys := &failingFS{FS: f.fs, createErrIn: f.backups}

	_, err := f.engine(func(o *engine.Options) { o.FS = fsys }).Setup(context.Background(), "default")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrBackupIO))
	assert.Equal(t, f.backups, errors.DetailString(err, "path"))

	assert.Equal(t, stateBefore, f.stateBytes())
	testutil.AssertRegularFile(t, f.fs, filepath.Join(f.home, ".bashrc"), "X")
	assert.Empty(t, f.archives())
	assert.Equal(t, []engine.Phase{engine.Resolving, engine.BackingUp, engine.Aborted}, f.phases)
}

func TestSetup_RelativeLocationsAnchorAtHome(t *testing.T) {
	f := newFixture(t, map[string][]string{"default": {".bashrc"}})
	st := f.loadState()
	st.Path = "dotfiles"
	st.BackupPath = ".dotsync/backups"
	require.NoError(t, state.NewStore(f.fs).Save(st, f.statePath))
	f.writeHome(".bashrc", "X")
	e := f.engine()

	first, err := e.Setup(context.Background(), "default")
	require.NoError(t, err)
	require.NotNil(t, first.Entry.Backup)
	assert.Equal(t, f.backups, filepath.Dir(*first.Entry.Backup))

	f.assertLinked(".bashrc")
	dest, err := os.Readlink(filepath.Join(f.home, ".bashrc"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dest), "link target %q should be absolute", dest)

	second, err := e.Setup(context.Background(), "default")
	require.NoError(t, err)
	assert.Nil(t, second.Entry.Backup)
	assert.Len(t, f.archives(), 1)
}

func TestSetup_ProfileInsideLinkedDirectoryLeavesRepoIntact(t *testing.T) {
	const nested = ".config/nvim/init.vim"
	f := newFixture(t, map[string][]string{"editor": {nested}})
	st := f.loadState()
	st.Profiles["xdg"] = []string{".config"}
	require.NoError(t, state.NewStore(f.fs).Save(st, f.statePath))
	e := f.engine()

	_, err := e.Setup(context.Background(), "xdg")
	require.NoError(t, err)
	f.assertLinked(".config")
	stateBefore := f.stateBytes()
	f.phases = nil

	_, err = e.Setup(context.Background(), "editor")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInstall))
	assert.Equal(t, filepath.Join(f.home, nested), errors.DetailString(err, "path"))
	assert.Equal(t, []engine.Phase{engine.Resolving, engine.Aborted}, f.phases)

	testutil.AssertRegularFile(t, f.fs, filepath.Join(f.repo, nested), "repo:"+nested)
	assert.Equal(t, stateBefore, f.stateBytes())
	assert.Empty(t, f.archives())

	_, err = e.Plan("editor")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInstall))
}

func TestSetup_OverlappingProfileInStateIsCorrupt(t *testing.T) {
	const nested = ".config/nvim/init.vim"
	f := newFixture(t, map[string][]string{"default": {nested}})
	st := f.loadState()
	st.Profiles["default"] = []string{".config", nested}
	data, err := json.MarshalIndent(st, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.Chmod(f.statePath, 0644))
	require.NoError(t, os.WriteFile(f.statePath, data, 0644))

	_, err = f.engine().Setup(context.Background(), "default")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateCorrupt))

	testutil.AssertRegularFile(t, f.fs, filepath.Join(f.repo, nested), "repo:"+nested)
	testutil.AssertNotExists(t, f.fs, filepath.Join(f.home, ".config"))
}

func TestNew_RequiresOptions(t *testing.T) {
	_, err := engine.New(engine.Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	_, err = engine.New(engine.Options{FS: filesystem.NewOS()})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	_, err = engine.New(engine.Options{FS: filesystem.NewOS(), StatePath: "/s"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}
