package state

import (
	"bytes"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/paths"
	"github.com/neelabalan/dotsync/pkg/profile"
	"github.com/neelabalan/dotsync/pkg/types"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// FileMode is the permission the state file is left with after a save.
const FileMode fs.FileMode = 0444

//go:embed schema/state.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("state.schema.json", doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("state.schema.json")
	})
	return schema, schemaErr
}

// Store reads and atomically replaces the state file.
type Store struct {
	fs types.FS
}

// NewStore returns a store working on fsys.
func NewStore(fsys types.FS) *Store {
	return &Store{fs: fsys}
}

// Exists reports whether a state file is present at path.
func (s *Store) Exists(path string) bool {
	_, err := s.fs.Lstat(path)
	return err == nil
}

// Load reads the state file at path. A missing file is STATE_NOT_FOUND;
// anything unreadable or invalid is STATE_CORRUPT.
func (s *Store) Load(path string) (*types.State, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Newf(errors.ErrStateNotFound, "no state file at %s, run init first", path).
				WithDetail("path", path)
		}
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "failed to read state file %s", path).
			WithDetail("path", path)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to compile state schema")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "state file %s is not valid JSON", path).
			WithDetail("path", path)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "state file %s does not match the schema", path).
			WithDetail("path", path)
	}

	var st types.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "failed to decode state file %s", path).
			WithDetail("path", path)
	}
	if err := Validate(&st); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "invalid state file %s", path).
			WithDetail("path", path)
	}
	return &st, nil
}

// Save replaces the state file at path with st. The new content is written to
// a temp file in the same directory and renamed over the old file, so readers
// see either the old state or the new one.
func (s *Store) Save(st *types.State, path string) error {
	logger := logging.GetLogger("state")

	if err := Validate(st); err != nil {
		return errors.Wrap(err, errors.ErrStateWrite, "refusing to save invalid state")
	}
	data, err := json.MarshalIndent(st.Clone(), "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrStateWrite, "failed to encode state")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrStateWrite, "failed to create %s", dir).
			WithDetail("path", path)
	}

	tmp, err := s.fs.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, errors.ErrStateWrite, "failed to create temp file in %s", dir).
			WithDetail("path", path)
	}
	tmpName := tmp.Name()
	fail := func(err error, msg string) error {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return errors.Wrap(err, errors.ErrStateWrite, msg).WithDetail("path", path)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err, "failed to write state")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "failed to flush state")
	}
	if err := tmp.Close(); err != nil {
		return fail(err, "failed to close state")
	}
	if err := s.fs.Chmod(tmpName, FileMode); err != nil {
		return fail(err, "failed to set state file mode")
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		return fail(err, "failed to replace state file")
	}
	s.syncDir(dir)

	logger.Debug().
		Str("path", path).
		Int("history", len(st.History)).
		Str("active_profile", st.Active()).
		Msg("State saved")
	return nil
}

// syncDir flushes the rename to disk where the filesystem allows it.
func (s *Store) syncDir(dir string) {
	d, err := s.fs.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Remove deletes the state file.
func (s *Store) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, errors.ErrStateWrite, "failed to remove state file %s", path).
			WithDetail("path", path)
	}
	return nil
}

// FromConfig builds the first state written by init.
func FromConfig(cfg *types.Config, source types.SourceType) *types.State {
	return &types.State{
		Config:     cfg.Clone(),
		History:    []types.HistoryEntry{},
		SourceType: source,
	}
}

// AppendHistory returns a copy of st with entry appended and the active
// profile set. st itself is not modified.
func AppendHistory(st *types.State, profileName string, entry types.HistoryEntry) *types.State {
	next := st.Clone()
	next.ActiveProfile = &profileName
	next.History = append(next.History, entry.Clone())
	return next
}

// Validate checks invariants the schema cannot express.
func Validate(st *types.State) error {
	if st == nil {
		return errors.New(errors.ErrInvalidInput, "state is nil")
	}
	if st.URL == "" || st.Path == "" || st.BackupPath == "" {
		return errors.New(errors.ErrInvalidInput, "url, path and backup_path are required")
	}
	if err := profile.Validate(st.Profiles); err != nil {
		return err
	}
	if name := st.Active(); name != "" {
		if _, ok := st.Profiles[name]; !ok {
			return errors.Newf(errors.ErrInvalidInput, "active profile %q is not defined", name)
		}
	}
	for i, entry := range st.History {
		if entry.CreatedAt.IsZero() {
			return errors.Newf(errors.ErrInvalidInput, "history entry %d has no created_at", i)
		}
		for _, f := range entry.Files {
			if err := paths.ValidateRelPath(f); err != nil {
				return errors.Wrapf(err, errors.ErrInvalidInput, "history entry %d", i)
			}
		}
	}
	switch st.SourceType {
	case "", types.SourceZip, types.SourceGitHTTPS, types.SourceGitSSH:
	default:
		return errors.Newf(errors.ErrInvalidInput, "unknown source type %q", st.SourceType)
	}
	return nil
}
