// Package symlink classifies and installs the links that map
// home/RelPath to repo/RelPath.
package symlink

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/synthfs/pkg/synthfs"
	synthfsfs "github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/types"
)

// Status is the classification of a home path against its expected link.
type Status int

const (
	// Missing means nothing exists at the path.
	Missing Status = iota
	// Linked means the path is a symlink to the expected target.
	Linked
	// Conflict means something else exists at the path.
	Conflict
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Linked:
		return "linked"
	case Conflict:
		return "conflict"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Inspect classifies linkPath. A symlink counts as Linked only when its
// target, resolved against the link's directory, equals target.
func Inspect(fsys types.FS, linkPath, target string) (Status, error) {
	info, err := fsys.Lstat(linkPath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return Missing, nil
		}
		return Conflict, err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return Conflict, nil
	}
	dest, err := fsys.Readlink(linkPath)
	if err != nil {
		return Conflict, err
	}
	if SameTarget(linkPath, dest, target) {
		return Linked, nil
	}
	return Conflict, nil
}

// SameTarget reports whether a link at linkPath reading dest points at target.
func SameTarget(linkPath, dest, target string) bool {
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(linkPath), dest)
	}
	return filepath.Clean(dest) == filepath.Clean(target)
}

// Entry is one file's classification.
type Entry struct {
	RelPath string
	Home    string
	Target  string
	Status  Status
}

// InspectAll classifies every file of a profile, in order.
func InspectAll(fsys types.FS, files []string, homeDir, repoPath string) ([]Entry, error) {
	entries := make([]Entry, 0, len(files))
	for _, rel := range files {
		e := Entry{
			RelPath: rel,
			Home:    filepath.Join(homeDir, rel),
			Target:  filepath.Join(repoPath, rel),
		}
		status, err := Inspect(fsys, e.Home, e.Target)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrInternal, "failed to inspect %s", e.Home).
				WithDetail("path", e.Home)
		}
		e.Status = status
		entries = append(entries, e)
	}
	return entries, nil
}

// CheckPaths rejects profile files that cannot be linked without touching
// the repository: a home path that is the repository, contains it or lies
// inside it, and a home path below a directory that is already a link into
// the repository.
func CheckPaths(fsys types.FS, files []string, homeDir, repoPath string) error {
	for _, rel := range files {
		linkPath := filepath.Join(homeDir, rel)
		if within(linkPath, repoPath) || within(repoPath, linkPath) {
			return errors.Newf(errors.ErrInstall, "%s overlaps the repository %s", linkPath, repoPath).
				WithDetail("path", linkPath)
		}
		parent, err := LinkedParent(fsys, homeDir, rel, repoPath)
		if err != nil {
			return errors.Wrapf(err, errors.ErrInstall, "failed to inspect parents of %s", linkPath).
				WithDetail("path", linkPath)
		}
		if parent != "" {
			return errors.Newf(errors.ErrInstall, "%s lies inside %s, which links into the repository", linkPath, parent).
				WithDetail("path", linkPath).
				WithDetail("parent", parent)
		}
	}
	return nil
}

// LinkedParent returns the first directory between homeDir and homeDir/rel
// that is a symlink resolving into repoPath, or "" if there is none.
func LinkedParent(fsys types.FS, homeDir, rel, repoPath string) (string, error) {
	dir := filepath.Dir(filepath.Clean(rel))
	if dir == "." {
		return "", nil
	}
	cur := homeDir
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := fsys.Lstat(cur)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return "", nil
			}
			return "", err
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			continue
		}
		dest, err := fsys.Readlink(cur)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(cur), dest)
		}
		if within(dest, repoPath) {
			return cur, nil
		}
	}
	return "", nil
}

func within(path, root string) bool {
	path, root = filepath.Clean(path), filepath.Clean(root)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// Installer creates profile symlinks. Each file is one step of a synthfs
// pipeline; the steps run in order and the first failure ends the run.
type Installer struct {
	fs         types.FS
	pipelineFS synthfsfs.FullFileSystem
}

// NewInstaller returns an installer working on fsys.
func NewInstaller(fsys types.FS) *Installer {
	osfs := synthfsfs.NewOSFileSystem("/")
	return &Installer{
		fs:         fsys,
		pipelineFS: synthfs.NewPathAwareFileSystem(osfs, "/").WithAbsolutePaths(),
	}
}

type step struct {
	id  string
	run func() error
}

// execute runs steps as one synthfs pipeline and returns the first step
// error. Steps after a failure are skipped.
func (i *Installer) execute(ctx context.Context, steps []step) error {
	if len(steps) == 0 {
		return nil
	}

	sfs := synthfs.New()
	var failed error
	ops := make([]synthfs.Operation, 0, len(steps))
	for _, s := range steps {
		s := s
		ops = append(ops, sfs.CustomOperationWithID(s.id, func(ctx context.Context, _ synthfsfs.FileSystem) error {
			if failed != nil {
				return nil
			}
			failed = s.run()
			return failed
		}))
	}

	options := synthfs.DefaultPipelineOptions()
	options.RollbackOnError = false
	_, err := synthfs.RunWithOptions(ctx, i.pipelineFS, options, ops...)
	if failed != nil {
		return failed
	}
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), errors.ErrCancelled, "link operations cancelled")
		}
		return errors.Wrap(err, errors.ErrInstall, "link operations failed")
	}
	return nil
}

// Install links homeDir/rel to repoPath/rel for every file, in order.
// It stops at the first failure and returns an INSTALL error naming the path.
func (i *Installer) Install(ctx context.Context, files []string, homeDir, repoPath string) error {
	logger := logging.GetLogger("symlink")

	if err := CheckPaths(i.fs, files, homeDir, repoPath); err != nil {
		return err
	}

	steps := make([]step, 0, len(files))
	for n, rel := range files {
		linkPath := filepath.Join(homeDir, rel)
		target := filepath.Join(repoPath, rel)
		steps = append(steps, step{
			id: fmt.Sprintf("link_%d_%s", n, filepath.Base(rel)),
			run: func() error {
				if err := i.installOne(linkPath, target); err != nil {
					return errors.Wrapf(err, errors.ErrInstall, "failed to link %s", linkPath).
						WithDetail("path", linkPath).
						WithDetail("target", target)
				}
				logger.Debug().Str("link", linkPath).Str("target", target).Msg("Linked")
				return nil
			},
		})
	}
	return i.execute(ctx, steps)
}

func (i *Installer) installOne(linkPath, target string) error {
	dir := filepath.Dir(linkPath)
	if err := i.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	status, err := Inspect(i.fs, linkPath, target)
	if err != nil {
		return err
	}
	if status == Linked {
		return nil
	}

	// Rename can replace a file or link but not a directory.
	if status == Conflict {
		info, err := i.fs.Lstat(linkPath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := i.fs.RemoveAll(linkPath); err != nil {
				return err
			}
		}
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.dotsync-%d", filepath.Base(linkPath), os.Getpid()))
	_ = i.fs.Remove(tmp)
	if err := i.fs.Symlink(target, tmp); err != nil {
		return err
	}
	if err := i.fs.Rename(tmp, linkPath); err != nil {
		_ = i.fs.Remove(tmp)
		return err
	}
	return nil
}

// Remove deletes the links of files that point at repoPath. Anything else is
// left alone. It returns the links it removed.
func (i *Installer) Remove(ctx context.Context, files []string, homeDir, repoPath string) ([]string, error) {
	var removed []string
	steps := make([]step, 0, len(files))
	for n, rel := range files {
		rel := rel
		linkPath := filepath.Join(homeDir, rel)
		steps = append(steps, step{
			id: fmt.Sprintf("unlink_%d_%s", n, filepath.Base(rel)),
			run: func() error {
				status, err := Inspect(i.fs, linkPath, filepath.Join(repoPath, rel))
				if err != nil {
					return errors.Wrapf(err, errors.ErrInstall, "failed to inspect %s", linkPath).
						WithDetail("path", linkPath)
				}
				if status != Linked {
					return nil
				}
				if err := i.fs.Remove(linkPath); err != nil {
					return errors.Wrapf(err, errors.ErrInstall, "failed to remove %s", linkPath).
						WithDetail("path", linkPath)
				}
				removed = append(removed, rel)
				return nil
			},
		})
	}
	err := i.execute(ctx, steps)
	return removed, err
}
