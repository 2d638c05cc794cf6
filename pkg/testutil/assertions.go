package testutil

import (
	"io/fs"
	"testing"

	"github.com/neelabalan/dotsync/pkg/symlink"
	"github.com/neelabalan/dotsync/pkg/types"
)

// AssertLinked fails unless linkPath is a symlink resolving to target
func AssertLinked(t *testing.T, fsys types.FS, linkPath, target string) {
	t.Helper()
	status, err := symlink.Inspect(fsys, linkPath, target)
	if err != nil {
		t.Errorf("inspect %s: %v", linkPath, err)
		return
	}
	if status != symlink.Linked {
		t.Errorf("expected %s to link to %s, got %s", linkPath, target, status)
	}
}

// AssertRegularFile fails unless path is a regular file holding content
func AssertRegularFile(t *testing.T, fsys types.FS, path, content string) {
	t.Helper()
	info, err := fsys.Lstat(path)
	if err != nil {
		t.Errorf("expected file %s: %v", path, err)
		return
	}
	if info.Mode()&fs.ModeType != 0 {
		t.Errorf("expected %s to be a regular file, mode is %s", path, info.Mode())
		return
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Errorf("read %s: %v", path, err)
		return
	}
	if string(data) != content {
		t.Errorf("content of %s: expected %q, got %q", path, content, string(data))
	}
}

// AssertNotExists fails if anything, including a dangling link, is at path
func AssertNotExists(t *testing.T, fsys types.FS, path string) {
	t.Helper()
	if _, err := fsys.Lstat(path); err == nil {
		t.Errorf("expected %s not to exist", path)
	}
}
