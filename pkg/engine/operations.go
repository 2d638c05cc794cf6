package engine

import (
	"context"

	"github.com/neelabalan/dotsync/pkg/backup"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/lock"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/paths"
	"github.com/neelabalan/dotsync/pkg/profile"
	"github.com/neelabalan/dotsync/pkg/state"
	"github.com/neelabalan/dotsync/pkg/symlink"
	"github.com/neelabalan/dotsync/pkg/types"
)

// FetchFunc places the repository of cfg at repoPath and returns its source
// type.
type FetchFunc func(ctx context.Context, cfg *types.Config, repoPath string) (types.SourceType, error)

// Init writes the first state file from cfg. An existing state file is an
// error unless force is set; a forced init keeps the history and, when it is
// still defined, the active profile. A non-nil fetch runs under the run lock
// before the state is written, and its source type replaces source.
func (e *Engine) Init(ctx context.Context, cfg *types.Config, source types.SourceType, force bool, fetch FetchFunc) (*types.State, error) {
	logger := logging.GetLogger("engine")

	l, err := lock.Acquire(e.statePath)
	if err != nil {
		return nil, err
	}
	defer e.release(l)

	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	exists := e.store.Exists(e.statePath)
	if exists && !force {
		return nil, errors.Newf(errors.ErrStateExists, "state file %s already exists, use --force to replace it", e.statePath).
			WithDetail("path", e.statePath)
	}

	if fetch != nil {
		repoPath := paths.ResolveWith(cfg.Path, e.homeDir)
		if source, err = fetch(ctx, cfg, repoPath); err != nil {
			return nil, err
		}
	}

	st := state.FromConfig(cfg, source)
	if exists {
		if prev, err := e.store.Load(e.statePath); err == nil {
			st.History = prev.Clone().History
			if name := prev.Active(); name != "" {
				if _, ok := st.Profiles[name]; ok {
					st.ActiveProfile = &name
				}
			}
		} else {
			logger.Warn().Err(err).Msg("Existing state is unreadable, replacing it")
		}
	}

	if err := e.store.Save(st, e.statePath); err != nil {
		return nil, err
	}
	logger.Info().
		Str("state", e.statePath).
		Int("profiles", len(st.Profiles)).
		Msg("State initialized")
	return st, nil
}

// Plan is the read-only preview of a setup run.
type Plan struct {
	Profile   string
	RepoPath  string
	BackupDir string
	Entries   []symlink.Entry
}

// Conflicts returns the entries a setup run would back up.
func (p *Plan) Conflicts() []symlink.Entry {
	var out []symlink.Entry
	for _, entry := range p.Entries {
		if entry.Status == symlink.Conflict {
			out = append(out, entry)
		}
	}
	return out
}

// Plan classifies every file of profileName without changing anything.
func (e *Engine) Plan(profileName string) (*Plan, error) {
	st, err := e.store.Load(e.statePath)
	if err != nil {
		return nil, err
	}
	files, err := profile.Resolve(profileName, st.Profiles)
	if err != nil {
		return nil, err
	}
	repoPath, backupDir := e.locations(st)
	if err := symlink.CheckPaths(e.fs, files, e.homeDir, repoPath); err != nil {
		return nil, err
	}
	entries, err := symlink.InspectAll(e.fs, files, e.homeDir, repoPath)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Profile:   profileName,
		RepoPath:  repoPath,
		BackupDir: backupDir,
		Entries:   entries,
	}, nil
}

// Status is a snapshot of the state file and the links of the active profile.
type Status struct {
	StatePath string
	State     *types.State
	RepoPath  string
	BackupDir string
	// Entries is empty when no profile is active.
	Entries []symlink.Entry
	Last    *types.HistoryEntry
	Backups []string
}

// Status reads the state and inspects the active profile's links.
func (e *Engine) Status() (*Status, error) {
	st, err := e.store.Load(e.statePath)
	if err != nil {
		return nil, err
	}
	repoPath, backupDir := e.locations(st)
	out := &Status{
		StatePath: e.statePath,
		State:     st,
		RepoPath:  repoPath,
		BackupDir: backupDir,
		Last:      st.LastEntry(),
	}
	if name := st.Active(); name != "" {
		files, err := profile.Resolve(name, st.Profiles)
		if err != nil {
			return nil, err
		}
		out.Entries, err = symlink.InspectAll(e.fs, files, e.homeDir, repoPath)
		if err != nil {
			return nil, err
		}
	}
	out.Backups, err = backup.List(e.fs, backupDir)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot archives the current content of the active profile's files
// without changing them. It returns "" when none of the files exist.
func (e *Engine) Snapshot(ctx context.Context) (string, error) {
	l, err := lock.Acquire(e.statePath)
	if err != nil {
		return "", err
	}
	defer e.release(l)

	st, files, err := e.activeFiles()
	if err != nil {
		return "", err
	}
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	_, backupDir := e.locations(st)
	archive, err := e.backups.Snapshot(files, e.homeDir, backupDir)
	if err != nil {
		return "", err
	}
	logger := logging.GetLogger("engine")
	logger.Info().
		Str("archive", archive).
		Str("profile", st.Active()).
		Msg("Snapshot written")
	return archive, nil
}

// Destroy removes the active profile's links that point into the repository
// and deletes the state file. Files that are not our links are left alone.
// It returns the RelPaths whose links were removed.
func (e *Engine) Destroy(ctx context.Context) ([]string, error) {
	l, err := lock.Acquire(e.statePath)
	if err != nil {
		return nil, err
	}
	defer e.release(l)

	st, err := e.store.Load(e.statePath)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var removed []string
	if name := st.Active(); name != "" {
		files, err := profile.Resolve(name, st.Profiles)
		if err != nil {
			return nil, err
		}
		repoPath, _ := e.locations(st)
		removed, err = e.installer.Remove(ctx, files, e.homeDir, repoPath)
		if err != nil {
			return removed, err
		}
	}
	if err := e.store.Remove(e.statePath); err != nil {
		return removed, err
	}
	logger := logging.GetLogger("engine")
	logger.Info().
		Int("links", len(removed)).
		Str("state", e.statePath).
		Msg("Destroyed")
	return removed, nil
}

// activeFiles loads the state and resolves its active profile.
func (e *Engine) activeFiles() (*types.State, []string, error) {
	st, err := e.store.Load(e.statePath)
	if err != nil {
		return nil, nil, err
	}
	name := st.Active()
	if name == "" {
		return nil, nil, errors.New(errors.ErrInvalidInput, "no active profile, run setup first")
	}
	files, err := profile.Resolve(name, st.Profiles)
	if err != nil {
		return nil, nil, err
	}
	return st, files, nil
}

// Active returns the active profile recorded in the state, or "".
func (e *Engine) Active() (string, error) {
	st, err := e.store.Load(e.statePath)
	if err != nil {
		return "", err
	}
	return st.Active(), nil
}
