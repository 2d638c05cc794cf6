// Package text provides plain text output without any styling
package text

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/neelabalan/dotsync/pkg/ui/display"
)

// Painter decorates s with the named style. The plain painter returns s.
type Painter func(style, s string) string

func plain(_ string, s string) string { return s }

// Renderer provides plain text output without colors or styling
type Renderer struct {
	output io.Writer
	paint  Painter
}

// New creates a new text renderer
func New(output io.Writer) (*Renderer, error) {
	return NewStyled(output, nil)
}

// NewStyled creates a text renderer that passes every styled fragment
// through paint. The terminal renderer builds on it.
func NewStyled(output io.Writer, paint Painter) (*Renderer, error) {
	if paint == nil {
		paint = plain
	}
	return &Renderer{output: output, paint: paint}, nil
}

// Marker returns the single-character prefix used for a file status.
func Marker(status string) string {
	switch status {
	case "linked":
		return "+"
	case "conflict":
		return "!"
	default:
		return "-"
	}
}

func markerStyle(status string) string {
	switch status {
	case "linked":
		return "Success"
	case "conflict":
		return "Warning"
	default:
		return "Muted"
	}
}

// RenderResult renders any result type as plain text
func (r *Renderer) RenderResult(result interface{}) error {
	switch v := result.(type) {
	case *display.Report:
		if v == nil {
			return nil
		}
		return r.renderReport(v)
	default:
		_, err := fmt.Fprintf(r.output, "%+v\n", result)
		return err
	}
}

// RenderError renders an error as plain text
func (r *Renderer) RenderError(err error) error {
	_, writeErr := fmt.Fprintf(r.output, "%s %s\n", r.paint("Error", "Error:"), err.Error())
	return writeErr
}

// RenderMessage renders a simple message
func (r *Renderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.output, msg)
	return err
}

func (r *Renderer) renderReport(rep *display.Report) error {
	var b strings.Builder
	if rep.Message != "" {
		b.WriteString(r.paint("Info", rep.Message))
		b.WriteString("\n\n")
	}

	switch rep.Command {
	case "status":
		r.status(&b, rep)
	case "setup":
		if rep.DryRun {
			r.plan(&b, rep)
		} else {
			r.setup(&b, rep)
		}
	case "init":
		fmt.Fprintf(&b, "state: %s\n", r.paint("FilePath", rep.StatePath))
		fmt.Fprintf(&b, "repository: %s (%s)\n", rep.URL, rep.SourceType)
		fmt.Fprintf(&b, "profiles: %s\n", strings.Join(rep.Profiles, ", "))
	case "backup":
		fmt.Fprintf(&b, "profile: %s\n", rep.Profile)
		fmt.Fprintf(&b, "backup written to %s\n", r.paint("FilePath", rep.Backup))
	case "destroy":
		if rep.Profile != "" {
			fmt.Fprintf(&b, "active profile: %s\n", rep.Profile)
		}
		for _, f := range rep.Removed {
			fmt.Fprintf(&b, "removed %s\n", f)
		}
		fmt.Fprintf(&b, "state file removed: %s\n", r.paint("FilePath", rep.StatePath))
	default:
		fmt.Fprintf(&b, "%s\n", r.paint("CommandHeader", rep.Command))
		r.files(&b, rep.Files)
	}

	_, err := io.WriteString(r.output, b.String())
	return err
}

func (r *Renderer) status(b *strings.Builder, rep *display.Report) {
	if !rep.HasProfile() {
		b.WriteString("no active profile set.\n")
		b.WriteString("run 'dotsync setup --profile <name>' first.\n")
		return
	}
	fmt.Fprintf(b, "active profile: %s\n\n", r.paint("Header", rep.Profile))
	if len(rep.Files) == 0 {
		fmt.Fprintf(b, "no files found for profile '%s'\n", rep.Profile)
	} else {
		fmt.Fprintf(b, "synced dotfiles (%d):\n", len(rep.Files))
		r.files(b, rep.Files)
	}
	if rep.LastRun != nil {
		b.WriteString("\n")
		fmt.Fprintf(b, "last run: %s", r.paint("Timestamp", humanize.Time(rep.LastRun.CreatedAt)))
		if rep.LastRun.Backup != "" {
			fmt.Fprintf(b, ", backup %s", r.paint("FilePath", rep.LastRun.Backup))
		}
		b.WriteString("\n")
	}
	if len(rep.Backups) > 0 {
		fmt.Fprintf(b, "backups: %d in %s\n", len(rep.Backups), r.paint("FilePath", rep.BackupDir))
	}
}

func (r *Renderer) plan(b *strings.Builder, rep *display.Report) {
	fmt.Fprintf(b, "%s %s\n", r.paint("Header", "setup "+rep.Profile), r.paint("DryRunBanner", "(dry run)"))
	if len(rep.Files) == 0 {
		b.WriteString("no files to process\n")
		return
	}
	for _, f := range rep.Files {
		action := "already linked"
		switch f.Status {
		case "missing":
			action = "will be linked"
		case "conflict":
			action = "will be backed up and linked"
		}
		fmt.Fprintf(b, "  %s %s %s\n",
			r.paint(markerStyle(f.Status), Marker(f.Status)), f.Path, r.paint("Muted", "("+action+")"))
	}
	if n := rep.CountByStatus("conflict"); n > 0 {
		fmt.Fprintf(b, "%d file(s) would be archived in %s\n", n, r.paint("FilePath", rep.BackupDir))
	}
}

func (r *Renderer) setup(b *strings.Builder, rep *display.Report) {
	header := "profile " + rep.Profile + " set up"
	if rep.RunID != "" {
		header += " " + r.paint("Muted", "(run "+rep.RunID+")")
	}
	fmt.Fprintf(b, "%s\n", r.paint("Success", header))
	r.files(b, rep.Files)
	if rep.Backup != "" {
		fmt.Fprintf(b, "backup: %s\n", r.paint("FilePath", rep.Backup))
	} else {
		b.WriteString("backup: none needed\n")
	}
}

func (r *Renderer) files(b *strings.Builder, files []display.File) {
	for _, f := range files {
		line := fmt.Sprintf("  %s %s", r.paint(markerStyle(f.Status), Marker(f.Status)), f.Path)
		if f.Status == "conflict" {
			line += " " + r.paint("Warning", "(conflict)")
		}
		b.WriteString(line + "\n")
	}
}
