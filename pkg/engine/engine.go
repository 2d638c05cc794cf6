package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neelabalan/dotsync/pkg/backup"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/lock"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/paths"
	"github.com/neelabalan/dotsync/pkg/profile"
	"github.com/neelabalan/dotsync/pkg/state"
	"github.com/neelabalan/dotsync/pkg/symlink"
	"github.com/neelabalan/dotsync/pkg/types"
	"github.com/rs/zerolog"
)

// Options configures an Engine.
type Options struct {
	// FS is the filesystem all operations go through.
	FS types.FS
	// StatePath is the absolute path of the state file.
	StatePath string
	// HomeDir is the directory RelPaths are linked under. "~" in the state's
	// path and backup_path expands to it.
	HomeDir string
	// Now is the clock used for history entries and archive names.
	Now func() time.Time
	// OnTransition is called on every phase change of a setup run.
	OnTransition func(from, to Phase)
}

// Engine runs the sync operations against one state file.
type Engine struct {
	fs           types.FS
	store        *state.Store
	backups      *backup.Manager
	installer    *symlink.Installer
	statePath    string
	homeDir      string
	now          func() time.Time
	onTransition func(from, to Phase)
}

// New validates opts and returns an engine.
func New(opts Options) (*Engine, error) {
	if opts.FS == nil {
		return nil, errors.New(errors.ErrInvalidInput, "engine requires a filesystem")
	}
	if opts.StatePath == "" {
		return nil, errors.New(errors.ErrInvalidInput, "engine requires a state file path")
	}
	if opts.HomeDir == "" {
		return nil, errors.New(errors.ErrInvalidInput, "engine requires a home directory")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		fs:           opts.FS,
		store:        state.NewStore(opts.FS),
		backups:      backup.NewManager(opts.FS).WithClock(now),
		installer:    symlink.NewInstaller(opts.FS),
		statePath:    opts.StatePath,
		homeDir:      opts.HomeDir,
		now:          now,
		onTransition: opts.OnTransition,
	}, nil
}

// StatePath returns the state file the engine works on.
func (e *Engine) StatePath() string { return e.statePath }

// Result describes a completed setup run.
type Result struct {
	RunID   string
	Profile string
	Entry   types.HistoryEntry
	State   *types.State
}

// run tracks one setup invocation.
type run struct {
	e      *Engine
	phase  Phase
	logger zerolog.Logger
}

func (r *run) to(p Phase) {
	if !CanTransition(r.phase, p) {
		r.logger.Error().Stringer("from", r.phase).Stringer("to", p).Msg("Illegal phase transition")
		return
	}
	from := r.phase
	r.phase = p
	r.logger.Debug().Stringer("from", from).Stringer("to", p).Msg("Phase")
	if r.e.onTransition != nil {
		r.e.onTransition(from, p)
	}
}

func (r *run) abort(err error) error {
	if !r.phase.Terminal() {
		r.to(Aborted)
	}
	r.logger.Warn().Err(err).Msg("Setup aborted")
	return err
}

// Setup links every file of profileName into the home directory, backing up
// whatever is in the way, and records the run in the state file. The state
// file changes only if every step succeeds.
func (e *Engine) Setup(ctx context.Context, profileName string) (*Result, error) {
	l, err := lock.Acquire(e.statePath)
	if err != nil {
		return nil, err
	}
	defer e.release(l)
	return e.setup(ctx, profileName)
}

// UpdateFunc brings the repository at repoPath up to date for st.
type UpdateFunc func(ctx context.Context, st *types.State, repoPath string) error

// Refresh updates the repository with update and sets the active profile up
// again. Both steps run under one run lock.
func (e *Engine) Refresh(ctx context.Context, update UpdateFunc) (*Result, error) {
	logger := logging.GetLogger("engine")

	l, err := lock.Acquire(e.statePath)
	if err != nil {
		return nil, err
	}
	defer e.release(l)

	st, err := e.store.Load(e.statePath)
	if err != nil {
		return nil, err
	}
	active := st.Active()
	if active == "" {
		return nil, errors.New(errors.ErrInvalidInput, "no profile is active")
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	repoPath, _ := e.locations(st)
	if err := update(ctx, st.Clone(), repoPath); err != nil {
		return nil, err
	}
	logger.Info().Str("repo", repoPath).Str("profile", active).Msg("Repository updated")
	return e.setup(ctx, active)
}

func (e *Engine) release(l *lock.Lock) {
	if err := l.Release(); err != nil {
		logger := logging.GetLogger("engine")
		logger.Warn().Err(err).Msg("Failed to release lock")
	}
}

// setup runs the phases of one setup. The caller holds the run lock.
func (e *Engine) setup(ctx context.Context, profileName string) (*Result, error) {
	runID := uuid.New().String()[:8]
	r := &run{
		e:     e,
		phase: Idle,
		logger: logging.GetLogger("engine").With().
			Str("run", runID).
			Str("profile", profileName).
			Logger(),
	}
	done := logging.LogOperationStart(r.logger, "setup")
	defer done()

	r.to(Resolving)
	current, err := e.store.Load(e.statePath)
	if err != nil {
		return nil, r.abort(err)
	}
	files, err := profile.Resolve(profileName, current.Profiles)
	if err != nil {
		return nil, r.abort(err)
	}
	repoPath, backupDir := e.locations(current)
	if err := symlink.CheckPaths(e.fs, files, e.homeDir, repoPath); err != nil {
		return nil, r.abort(err)
	}
	r.logger.Info().Int("files", len(files)).Str("repo", repoPath).Msg("Profile resolved")

	if err := checkContext(ctx); err != nil {
		return nil, r.abort(err)
	}
	r.to(BackingUp)
	archive, err := e.backups.Backup(files, e.homeDir, repoPath, backupDir)
	if err != nil {
		return nil, r.abort(err)
	}

	if err := checkContext(ctx); err != nil {
		return nil, r.abort(err)
	}
	r.to(Installing)
	if err := e.installer.Install(ctx, files, e.homeDir, repoPath); err != nil {
		return nil, r.abort(err)
	}

	if err := checkContext(ctx); err != nil {
		return nil, r.abort(err)
	}
	r.to(Committing)
	entry := types.HistoryEntry{
		CreatedAt: e.now().UTC(),
		Files:     files,
	}
	if archive != "" {
		entry.Backup = &archive
	}
	next := state.AppendHistory(current, profileName, entry)
	if err := e.store.Save(next, e.statePath); err != nil {
		return nil, r.abort(err)
	}
	r.to(Done)

	r.logger.Info().
		Str("backup", archive).
		Int("history", len(next.History)).
		Msg("Setup complete")

	return &Result{
		RunID:   runID,
		Profile: profileName,
		Entry:   entry.Clone(),
		State:   next,
	}, nil
}

// locations resolves the repository and backup directories of st to
// absolute paths.
func (e *Engine) locations(st *types.State) (repoPath, backupDir string) {
	return paths.ResolveWith(st.Path, e.homeDir), paths.ResolveWith(st.BackupPath, e.homeDir)
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCancelled, "setup cancelled")
	}
	return nil
}
