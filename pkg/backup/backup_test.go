// pkg/backup/backup_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem (t.TempDir)
// PURPOSE: Test conflict detection, archive contents and the no-loss ordering

package backup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neelabalan/dotsync/pkg/backup"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	home, repo, backups string
}

func setupEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	e := env{
		home:    filepath.Join(root, "home"),
		repo:    filepath.Join(root, "repo"),
		backups: filepath.Join(root, "backups"),
	}
	require.NoError(t, os.MkdirAll(e.home, 0755))
	require.NoError(t, os.MkdirAll(e.repo, 0755))
	return e
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
}

func newManager() *backup.Manager {
	return backup.NewManager(filesystem.NewOS()).WithClock(fixedClock)
}

func itemsByName(t *testing.T, archive string) map[string]backup.Item {
	t.Helper()
	items, err := backup.Contents(filesystem.NewOS(), archive)
	require.NoError(t, err)
	out := make(map[string]backup.Item, len(items))
	for _, item := range items {
		out[item.Name] = item
	}
	return out
}

func TestBackup_NoConflictsCreatesNothing(t *testing.T) {
	e := setupEnv(t)
	require.NoError(t, os.Symlink(filepath.Join(e.repo, ".zshrc"), filepath.Join(e.home, ".zshrc")))

	archive, err := newManager().Backup([]string{".bashrc", ".zshrc"}, e.home, e.repo, e.backups)
	require.NoError(t, err)
	assert.Empty(t, archive)

	_, err = os.Stat(e.backups)
	assert.True(t, os.IsNotExist(err), "backup dir is not created when nothing conflicts")
}

func TestBackup_ArchivesThenRemoves(t *testing.T) {
	e := setupEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.home, ".bashrc"), []byte("X"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(e.home, ".config", "nvim"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(e.home, ".config", "nvim", "init.lua"), []byte("lua"), 0644))
	require.NoError(t, os.Symlink("/elsewhere/gitconfig", filepath.Join(e.home, ".gitconfig")))
	require.NoError(t, os.Symlink(filepath.Join(e.repo, ".zshrc"), filepath.Join(e.home, ".zshrc")))

	files := []string{".bashrc", ".config/nvim", ".gitconfig", ".zshrc", ".missing"}
	archive, err := newManager().Backup(files, e.home, e.repo, e.backups)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.backups, "dotfiles_backup_20260314150926.zip"), archive)

	items := itemsByName(t, archive)
	assert.Equal(t, []byte("X"), items[".bashrc"].Data)
	assert.Equal(t, os.FileMode(0600), items[".bashrc"].Mode.Perm())
	assert.True(t, items[".config/nvim/"].IsDir())
	assert.Equal(t, []byte("lua"), items[".config/nvim/init.lua"].Data)
	assert.True(t, items[".gitconfig"].IsSymlink())
	assert.Equal(t, []byte("/elsewhere/gitconfig"), items[".gitconfig"].Data)
	assert.NotContains(t, items, ".zshrc", "correct links are not backed up")
	assert.Len(t, items, 4)

	for _, rel := range []string{".bashrc", ".config/nvim", ".gitconfig"} {
		_, err := os.Lstat(filepath.Join(e.home, rel))
		assert.True(t, os.IsNotExist(err), "%s should be removed", rel)
	}
	_, err = os.Lstat(filepath.Join(e.home, ".zshrc"))
	assert.NoError(t, err, "correct link is untouched")
}

func TestBackup_NameCollisionGetsSuffix(t *testing.T) {
	e := setupEnv(t)
	m := newManager()

	var archives []string
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(e.home, ".bashrc"), []byte{byte('a' + i)}, 0644))
		archive, err := m.Backup([]string{".bashrc"}, e.home, e.repo, e.backups)
		require.NoError(t, err)
		archives = append(archives, archive)
	}

	assert.Equal(t, []string{
		filepath.Join(e.backups, "dotfiles_backup_20260314150926.zip"),
		filepath.Join(e.backups, "dotfiles_backup_20260314150926_1.zip"),
		filepath.Join(e.backups, "dotfiles_backup_20260314150926_2.zip"),
	}, archives)

	listed, err := backup.List(filesystem.NewOS(), e.backups)
	require.NoError(t, err)
	assert.Equal(t, archives, listed)

	for i, archive := range archives {
		assert.Equal(t, []byte{byte('a' + i)}, itemsByName(t, archive)[".bashrc"].Data)
	}
}

func TestBackup_ArchiveFailureKeepsOriginals(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	e := setupEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.home, ".bashrc"), []byte("X"), 0644))
	require.NoError(t, os.MkdirAll(e.backups, 0555))
	t.Cleanup(func() { _ = os.Chmod(e.backups, 0755) })

	archive, err := newManager().Backup([]string{".bashrc"}, e.home, e.repo, e.backups)
	require.Error(t, err)
	assert.Empty(t, archive)
	assert.True(t, errors.IsErrorCode(err, errors.ErrBackupIO))

	data, err := os.ReadFile(filepath.Join(e.home, ".bashrc"))
	require.NoError(t, err)
	assert.Equal(t, "X", string(data))
}

func TestSnapshot_FollowsLinksAndKeepsFiles(t *testing.T) {
	e := setupEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.repo, ".bashrc"), []byte("from repo"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(e.repo, ".bashrc"), filepath.Join(e.home, ".bashrc")))
	require.NoError(t, os.WriteFile(filepath.Join(e.home, ".vimrc"), []byte("set nu"), 0644))

	archive, err := newManager().Snapshot([]string{".bashrc", ".vimrc", ".missing"}, e.home, e.backups)
	require.NoError(t, err)
	require.NotEmpty(t, archive)

	items := itemsByName(t, archive)
	assert.Equal(t, []byte("from repo"), items[".bashrc"].Data)
	assert.False(t, items[".bashrc"].IsSymlink())
	assert.Equal(t, []byte("set nu"), items[".vimrc"].Data)

	_, err = os.Lstat(filepath.Join(e.home, ".bashrc"))
	assert.NoError(t, err)
	_, err = os.Lstat(filepath.Join(e.home, ".vimrc"))
	assert.NoError(t, err)
}

func TestSnapshot_NothingToArchive(t *testing.T) {
	e := setupEnv(t)

	archive, err := newManager().Snapshot([]string{".missing"}, e.home, e.backups)
	require.NoError(t, err)
	assert.Empty(t, archive)
}

func TestContents_InvalidArchive(t *testing.T) {
	e := setupEnv(t)
	bad := filepath.Join(e.home, "bad.zip")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0644))

	_, err := backup.Contents(filesystem.NewOS(), bad)
	assert.True(t, errors.IsErrorCode(err, errors.ErrBackupIO))
}

func TestList_MissingDir(t *testing.T) {
	archives, err := backup.List(filesystem.NewOS(), filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	assert.Empty(t, archives)
}
