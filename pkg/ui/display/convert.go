// Package display converts engine results into the Report that every
// renderer consumes.
package display

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/neelabalan/dotsync/pkg/engine"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/profile"
	"github.com/neelabalan/dotsync/pkg/symlink"
	"github.com/neelabalan/dotsync/pkg/types"
)

var now = time.Now

func newReport(command string) *Report {
	return &Report{
		Command:   command,
		Files:     []File{},
		Timestamp: now(),
	}
}

func files(entries []symlink.Entry) []File {
	out := make([]File, 0, len(entries))
	for _, e := range entries {
		out = append(out, File{
			Path:   e.RelPath,
			Target: e.Target,
			Status: e.Status.String(),
		})
	}
	return out
}

func run(entry *types.HistoryEntry) *Run {
	if entry == nil {
		return nil
	}
	r := &Run{CreatedAt: entry.CreatedAt, Files: append([]string{}, entry.Files...)}
	if entry.Backup != nil {
		r.Backup = *entry.Backup
	}
	return r
}

func fromState(r *Report, st *types.State) {
	if st == nil {
		return
	}
	r.Profile = st.Active()
	r.Profiles = profile.Names(st.Profiles)
	r.URL = st.URL
	r.SourceType = string(st.SourceType)
	r.HistoryLength = len(st.History)
}

// FromStatus builds the status report.
func FromStatus(s *engine.Status) *Report {
	r := newReport("status")
	fromState(r, s.State)
	r.StatePath = s.StatePath
	r.RepoPath = s.RepoPath
	r.BackupDir = s.BackupDir
	r.Files = files(s.Entries)
	r.LastRun = run(s.Last)
	r.Backups = baseNames(s.Backups)
	return r
}

// FromPlan builds the dry-run report of a setup.
func FromPlan(p *engine.Plan) *Report {
	r := newReport("setup")
	r.DryRun = true
	r.Profile = p.Profile
	r.RepoPath = p.RepoPath
	r.BackupDir = p.BackupDir
	r.Files = files(p.Entries)
	return r
}

// FromSetup builds the report of a completed setup run. Every file of the
// profile is linked once the run is committed.
func FromSetup(res *engine.Result, repoPath string) *Report {
	r := newReport("setup")
	fromState(r, res.State)
	r.RunID = res.RunID
	r.Profile = res.Profile
	r.RepoPath = repoPath
	for _, f := range res.Entry.Files {
		r.Files = append(r.Files, File{
			Path:   f,
			Target: filepath.Join(repoPath, filepath.FromSlash(f)),
			Status: symlink.Linked.String(),
		})
	}
	r.LastRun = run(&res.Entry)
	if res.Entry.Backup != nil {
		r.Backup = *res.Entry.Backup
	}
	return r
}

// FromInit builds the report of an init.
func FromInit(st *types.State, statePath string) *Report {
	r := newReport("init")
	fromState(r, st)
	r.StatePath = statePath
	return r
}

// FromSnapshot builds the report of a backup command.
func FromSnapshot(profileName, archive string) *Report {
	r := newReport("backup")
	r.Profile = profileName
	r.Backup = archive
	return r
}

// FromDestroy builds the report of a destroy.
func FromDestroy(profileName, statePath string, removed []string) *Report {
	r := newReport("destroy")
	r.Profile = profileName
	r.StatePath = statePath
	r.Removed = append([]string{}, removed...)
	return r
}

func baseNames(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

// FromError builds the Problem for err, carrying its code and details when
// it is a DotsyncError.
func FromError(err error) *Problem {
	p := &Problem{Error: err.Error()}
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		p.Code = string(code)
	}
	if details := errors.GetErrorDetails(err); len(details) > 0 {
		p.Details = make(map[string]string, len(details))
		for k, v := range details {
			p.Details[k] = fmt.Sprint(v)
		}
	}
	return p
}
