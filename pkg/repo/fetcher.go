package repo

import (
	"context"
	"path/filepath"

	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/types"
)

// Fetcher places the repository at its configured path.
type Fetcher struct {
	fs         types.FS
	git        GitClient
	downloader *Downloader
}

// NewFetcher returns a fetcher. A nil git client or downloader selects the
// default implementation.
func NewFetcher(fsys types.FS, git GitClient, downloader *Downloader) *Fetcher {
	if git == nil {
		git = NewShellClient()
	}
	if downloader == nil {
		downloader = NewDownloader(nil)
	}
	return &Fetcher{fs: fsys, git: git, downloader: downloader}
}

// Fetch clones or downloads url into dir and returns the detected source type.
// An existing git checkout at dir is left as it is.
func (f *Fetcher) Fetch(ctx context.Context, url, branch, dir string) (types.SourceType, error) {
	logger := logging.GetLogger("repo")
	source := DetectSourceType(url)
	logger.Info().Str("url", url).Str("source", string(source)).Str("dir", dir).Msg("Fetching repository")

	switch source {
	case types.SourceZip:
		if err := f.extract(ctx, url, dir); err != nil {
			return source, err
		}
	default:
		if _, err := f.fs.Stat(filepath.Join(dir, ".git")); err == nil {
			logger.Info().Str("dir", dir).Msg("Repository already cloned")
			return source, nil
		}
		if err := f.git.Clone(ctx, url, branch, dir); err != nil {
			return source, errors.Wrapf(err, errors.ErrRepoFetch, "failed to clone %s", url).
				WithDetail("url", url)
		}
	}
	return source, nil
}

// Update brings an existing repository up to date.
func (f *Fetcher) Update(ctx context.Context, source types.SourceType, url, dir string) error {
	if source == "" {
		source = DetectSourceType(url)
	}
	if source == types.SourceZip {
		return f.extract(ctx, url, dir)
	}
	commit, err := f.git.Pull(ctx, dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrRepoFetch, "failed to update %s", dir).
			WithDetail("path", dir)
	}
	logger := logging.GetLogger("repo")
	logger.Info().Str("dir", dir).Str("commit", commit).Msg("Repository updated")
	return nil
}

func (f *Fetcher) extract(ctx context.Context, url, dir string) error {
	data, err := f.downloader.Download(ctx, url)
	if err != nil {
		return errors.Wrapf(err, errors.ErrRepoFetch, "failed to download %s", url).
			WithDetail("url", url)
	}
	n, err := Extract(f.fs, data, dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrRepoFetch, "failed to extract %s", url).
			WithDetail("url", url).
			WithDetail("path", dir)
	}
	logger := logging.GetLogger("repo")
	logger.Info().Int("entries", n).Str("dir", dir).Msg("Archive extracted")
	return nil
}
