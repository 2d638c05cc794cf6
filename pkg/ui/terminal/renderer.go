// Package terminal provides rich terminal output with colors and styling
package terminal

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/ui/display"
	"github.com/neelabalan/dotsync/pkg/ui/styles"
	"github.com/neelabalan/dotsync/pkg/ui/text"
)

// Renderer lays reports out like the text renderer and colors them with
// the registered styles.
type Renderer struct {
	output io.Writer
	text   *text.Renderer
}

// New creates a new terminal renderer
func New(w io.Writer) (*Renderer, error) {
	inner, err := text.NewStyled(w, styles.Render)
	if err != nil {
		return nil, fmt.Errorf("failed to create text renderer: %w", err)
	}
	return &Renderer{output: w, text: inner}, nil
}

// RenderResult renders any result type with rich terminal formatting
func (r *Renderer) RenderResult(result interface{}) error {
	return r.text.RenderResult(result)
}

// RenderError renders an error with its code and details in a bordered box
func (r *Renderer) RenderError(err error) error {
	body := styles.Render("Error", "Error: ") + err.Error()
	if details := display.FromError(err); details.Code != "" {
		body += "\n" + styles.Render("Muted", "code: "+details.Code)
		if path := errors.DetailString(err, "path"); path != "" {
			body += "\n" + styles.Render("Muted", "path: ") + styles.Render("FilePath", path)
		}
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.GetStyle("Error").GetForeground()).
		Padding(0, 1)
	_, writeErr := fmt.Fprintln(r.output, box.Render(body))
	return writeErr
}

// RenderMessage renders a simple message
func (r *Renderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.output, styles.Render("Info", msg))
	return err
}
