package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/types"
)

// MaxArchiveSize bounds how much a zip download may read.
const MaxArchiveSize = 256 << 20

// Downloader fetches zip archives over HTTP.
type Downloader struct {
	client *http.Client
}

// NewDownloader returns a downloader using client, or a default client with
// a timeout when client is nil.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Downloader{client: client}
}

// Download reads the archive at url into memory.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid archive url: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if len(data) > MaxArchiveSize {
		return nil, fmt.Errorf("archive exceeds %s", humanize.IBytes(MaxArchiveSize))
	}
	logger := logging.GetLogger("repo")
	logger.Debug().
		Str("url", url).
		Str("size", humanize.Bytes(uint64(len(data)))).
		Msg("Archive downloaded")
	return data, nil
}

// Extract unpacks a zip archive into destDir. When every entry shares one
// top-level directory, as in forge-generated archives, that directory is
// stripped. Entries that would land outside destDir are rejected.
func Extract(fsys types.FS, data []byte, destDir string) (int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid zip archive: %w", err)
	}
	prefix := commonRoot(zr.File)

	if err := fsys.MkdirAll(destDir, 0755); err != nil {
		return 0, err
	}

	written := 0
	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, prefix)
		if name == "" {
			continue
		}
		target, err := safeJoin(destDir, name)
		if err != nil {
			return written, err
		}

		mode := f.Mode()
		switch {
		case f.FileInfo().IsDir():
			if err := fsys.MkdirAll(target, 0755); err != nil {
				return written, err
			}
			continue
		case mode&fs.ModeSymlink != 0:
			dest, err := readEntry(f)
			if err != nil {
				return written, err
			}
			if err := fsys.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return written, err
			}
			_ = fsys.Remove(target)
			if err := fsys.Symlink(string(dest), target); err != nil {
				return written, err
			}
		default:
			content, err := readEntry(f)
			if err != nil {
				return written, err
			}
			if err := fsys.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return written, err
			}
			perm := mode.Perm()
			if perm == 0 {
				perm = 0644
			}
			if err := fsys.WriteFile(target, content, perm); err != nil {
				return written, err
			}
		}
		written++
	}
	return written, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// commonRoot returns "dir/" when every entry lives under one top-level
// directory, otherwise "".
func commonRoot(files []*zip.File) string {
	root := ""
	for _, f := range files {
		first, _, found := strings.Cut(f.Name, "/")
		if !found && !f.FileInfo().IsDir() {
			return ""
		}
		if root == "" {
			root = first
		} else if first != root {
			return ""
		}
	}
	if root == "" {
		return ""
	}
	return root + "/"
}

// safeJoin joins an archive entry name onto dir, refusing names that escape it.
func safeJoin(dir, name string) (string, error) {
	clean := path.Clean("/" + name)
	if strings.Contains(name, "\\") || clean == "/" {
		return "", fmt.Errorf("unsafe archive entry %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("unsafe archive entry %q", name)
		}
	}
	return filepath.Join(dir, filepath.FromSlash(clean[1:])), nil
}
