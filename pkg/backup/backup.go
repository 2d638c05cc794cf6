// Package backup archives home directory entries that setup is about to
// replace, so that no pre-existing file is lost.
package backup

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/symlink"
	"github.com/neelabalan/dotsync/pkg/types"
)

const (
	// ArchivePrefix starts every backup archive name.
	ArchivePrefix = "dotfiles_backup_"
	// ArchiveExt ends every backup archive name.
	ArchiveExt = ".zip"

	timestampLayout = "20060102150405"
)

// Manager writes backup archives.
type Manager struct {
	fs  types.FS
	now func() time.Time
}

// NewManager returns a manager working on fsys.
func NewManager(fsys types.FS) *Manager {
	return &Manager{fs: fsys, now: time.Now}
}

// WithClock replaces the clock used to name archives.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Conflicts returns the files whose home path exists and is not already the
// expected link into repoPath, in input order.
func (m *Manager) Conflicts(files []string, homeDir, repoPath string) ([]string, error) {
	entries, err := symlink.InspectAll(m.fs, files, homeDir, repoPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrBackupIO, "failed to inspect home directory")
	}
	var conflicts []string
	for _, e := range entries {
		if e.Status == symlink.Conflict {
			conflicts = append(conflicts, e.RelPath)
		}
	}
	return conflicts, nil
}

// Backup archives every conflicting file into one new archive under
// backupDir, then removes the originals from homeDir. It returns the archive
// path, or "" when nothing conflicted. Originals are only removed once the
// archive is complete on disk.
func (m *Manager) Backup(files []string, homeDir, repoPath, backupDir string) (string, error) {
	if err := symlink.CheckPaths(m.fs, files, homeDir, repoPath); err != nil {
		return "", err
	}
	logger := logging.GetLogger("backup")

	conflicts, err := m.Conflicts(files, homeDir, repoPath)
	if err != nil {
		return "", err
	}
	if len(conflicts) == 0 {
		logger.Debug().Int("files", len(files)).Msg("No conflicting files, skipping backup")
		return "", nil
	}

	archive, err := m.writeArchive(conflicts, homeDir, backupDir, false)
	if err != nil {
		return "", err
	}

	for _, rel := range conflicts {
		p := filepath.Join(homeDir, rel)
		if err := m.fs.RemoveAll(p); err != nil {
			return archive, errors.Wrapf(err, errors.ErrBackupIO, "failed to remove %s after backup", p).
				WithDetail("path", p).
				WithDetail("archive", archive)
		}
		logger.Debug().Str("path", p).Msg("Removed original after backup")
	}

	logger.Info().
		Str("archive", archive).
		Int("files", len(conflicts)).
		Msg("Backed up conflicting files")
	return archive, nil
}

// Snapshot archives every existing file, following symlinks, without
// removing anything. It returns "" when none of the files exist.
func (m *Manager) Snapshot(files []string, homeDir, backupDir string) (string, error) {
	var existing []string
	for _, rel := range files {
		if _, err := m.fs.Stat(filepath.Join(homeDir, rel)); err == nil {
			existing = append(existing, rel)
		}
	}
	if len(existing) == 0 {
		return "", nil
	}
	return m.writeArchive(existing, homeDir, backupDir, true)
}

func (m *Manager) writeArchive(files []string, homeDir, backupDir string, follow bool) (string, error) {
	logger := logging.GetLogger("backup")

	if err := m.fs.MkdirAll(backupDir, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrBackupIO, "failed to create backup directory %s", backupDir).
			WithDetail("path", backupDir)
	}

	tmp, err := m.fs.CreateTemp(backupDir, "."+ArchivePrefix+"*"+ArchiveExt+".tmp")
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrBackupIO, "failed to create archive in %s", backupDir).
			WithDetail("path", backupDir)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = m.fs.Remove(tmpName)
	}

	zw := zip.NewWriter(tmp)
	for _, rel := range files {
		if err := m.addPath(zw, homeDir, rel, follow); err != nil {
			cleanup()
			return "", errors.Wrapf(err, errors.ErrBackupIO, "failed to archive %s", rel).
				WithDetail("path", filepath.Join(homeDir, rel))
		}
	}
	if err := zw.Close(); err != nil {
		cleanup()
		return "", errors.Wrap(err, errors.ErrBackupIO, "failed to finish archive")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", errors.Wrap(err, errors.ErrBackupIO, "failed to flush archive")
	}
	info, statErr := tmp.Stat()
	if err := tmp.Close(); err != nil {
		_ = m.fs.Remove(tmpName)
		return "", errors.Wrap(err, errors.ErrBackupIO, "failed to close archive")
	}

	final := m.archiveName(backupDir)
	if err := m.fs.Rename(tmpName, final); err != nil {
		_ = m.fs.Remove(tmpName)
		return "", errors.Wrapf(err, errors.ErrBackupIO, "failed to move archive to %s", final).
			WithDetail("path", final)
	}

	event := logger.Debug().Str("archive", final).Int("entries", len(files))
	if statErr == nil {
		event = event.Str("size", humanize.Bytes(uint64(info.Size())))
	}
	event.Msg("Archive written")
	return final, nil
}

// archiveName picks a timestamped name that does not exist yet.
func (m *Manager) archiveName(backupDir string) string {
	base := ArchivePrefix + m.now().Format(timestampLayout)
	name := filepath.Join(backupDir, base+ArchiveExt)
	for n := 1; m.exists(name); n++ {
		name = filepath.Join(backupDir, fmt.Sprintf("%s_%d%s", base, n, ArchiveExt))
	}
	return name
}

func (m *Manager) exists(p string) bool {
	_, err := m.fs.Lstat(p)
	return err == nil
}

func (m *Manager) addPath(zw *zip.Writer, homeDir, rel string, follow bool) error {
	full := filepath.Join(homeDir, rel)
	var (
		info fs.FileInfo
		err  error
	)
	if follow {
		info, err = m.fs.Stat(full)
	} else {
		info, err = m.fs.Lstat(full)
	}
	if err != nil {
		return err
	}

	name := filepath.ToSlash(filepath.Clean(rel))
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		dest, err := m.fs.Readlink(full)
		if err != nil {
			return err
		}
		w, err := zw.CreateHeader(header(info, name, zip.Store))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, dest)
		return err

	case info.IsDir():
		if _, err := zw.CreateHeader(header(info, name+"/", zip.Store)); err != nil {
			return err
		}
		entries, err := m.fs.ReadDir(full)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := m.addPath(zw, homeDir, filepath.Join(rel, entry.Name()), follow); err != nil {
				return err
			}
		}
		return nil

	case info.Mode().IsRegular():
		f, err := m.fs.Open(full)
		if err != nil {
			return err
		}
		defer f.Close()
		w, err := zw.CreateHeader(header(info, name, zip.Deflate))
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		return err

	default:
		return fmt.Errorf("unsupported file type %s", info.Mode().Type())
	}
}

func header(info fs.FileInfo, name string, method uint16) *zip.FileHeader {
	h := &zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: info.ModTime(),
	}
	h.SetMode(info.Mode())
	return h
}

// Item is one entry of an archive.
type Item struct {
	Name string
	Mode fs.FileMode
	// Data holds file content, or the target of a symlink entry.
	Data []byte
}

// IsDir reports whether the entry is a directory.
func (i Item) IsDir() bool { return i.Mode.IsDir() || strings.HasSuffix(i.Name, "/") }

// IsSymlink reports whether the entry is a stored symlink.
func (i Item) IsSymlink() bool { return i.Mode&fs.ModeSymlink != 0 }

// Contents reads every entry of the archive at archivePath.
func Contents(fsys types.FS, archivePath string) ([]Item, error) {
	data, err := fsys.ReadFile(archivePath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrBackupIO, "failed to read archive %s", archivePath).
			WithDetail("path", archivePath)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrBackupIO, "invalid archive %s", archivePath).
			WithDetail("path", archivePath)
	}

	items := make([]Item, 0, len(zr.File))
	for _, f := range zr.File {
		item := Item{Name: f.Name, Mode: f.Mode()}
		if !f.FileInfo().IsDir() {
			rc, err := f.Open()
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrBackupIO, "failed to open %s in archive", f.Name)
			}
			item.Data, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrBackupIO, "failed to read %s in archive", f.Name)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// List returns the backup archives in backupDir, oldest first.
func List(fsys types.FS, backupDir string) ([]string, error) {
	entries, err := fsys.ReadDir(backupDir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrBackupIO, "failed to list %s", backupDir).
			WithDetail("path", backupDir)
	}
	var archives []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ArchivePrefix) || path.Ext(name) != ArchiveExt {
			continue
		}
		archives = append(archives, filepath.Join(backupDir, name))
	}
	return archives, nil
}
