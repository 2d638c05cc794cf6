// Package toml provides machine-readable TOML output
package toml

import (
	"io"

	"github.com/neelabalan/dotsync/pkg/ui/display"
	gotoml "github.com/pelletier/go-toml/v2"
)

// Renderer writes TOML documents. TOML documents are tables, so results
// must be structs or maps.
type Renderer struct {
	output io.Writer
}

// New creates a new TOML renderer
func New(output io.Writer) (*Renderer, error) {
	return &Renderer{output: output}, nil
}

func (r *Renderer) encode(v interface{}) error {
	enc := gotoml.NewEncoder(r.output)
	enc.SetIndentTables(true)
	return enc.Encode(v)
}

// RenderResult renders any result type as TOML
func (r *Renderer) RenderResult(result interface{}) error {
	return r.encode(result)
}

// RenderError renders an error as TOML
func (r *Renderer) RenderError(err error) error {
	return r.encode(display.FromError(err))
}

// RenderMessage renders a simple message as TOML
func (r *Renderer) RenderMessage(msg string) error {
	return r.encode(display.Message{Message: msg})
}
