package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format string, defaulting to text.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Meta describes a rendered result. It becomes the JSON envelope's meta
// object and the markdown frontmatter.
type Meta struct {
	Type      string    `json:"type" yaml:"type"`
	Hostess   string    `json:"hostess,omitempty" yaml:"hostess,omitempty"`
	Count     int       `json:"count,omitempty" yaml:"count,omitempty"`
	Generated time.Time `json:"generated" yaml:"generated"`
}

// NewMeta creates metadata with the given type and current timestamp.
func NewMeta(resultType string) Meta {
	return Meta{Type: resultType, Generated: time.Now().UTC()}
}

// Renderable can render itself in every Format.
type Renderable interface {
	Meta() Meta
	RenderText(w io.Writer) error
	RenderJSON() any
	RenderMarkdown(w io.Writer) error
}

// Output renders results in one format.
type Output struct {
	format  Format
	w       io.Writer
	hostess string
}

// NewOutput creates an output renderer for the given format.
func NewOutput(format Format, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// ViperGetter is the subset of viper.Viper we need.
type ViperGetter interface {
	GetString(key string) string
}

// NewOutputFromViper reads the "output" key (text, json, markdown).
func NewOutputFromViper(v ViperGetter) *Output {
	return NewOutput(ParseFormat(v.GetString("output")), os.Stdout)
}

// ForHostess stamps the registry address into every result's meta.
func (o *Output) ForHostess(addr string) *Output {
	o.hostess = addr
	return o
}

// Format returns the configured output format.
func (o *Output) Format() Format {
	return o.format
}

// Table creates a table renderer attached to this output.
func (o *Output) Table(resultType string, headers ...string) *Table {
	return &Table{out: o, meta: o.meta(resultType), headers: headers}
}

// KV creates a key-value renderer attached to this output.
func (o *Output) KV(resultType string) *KV {
	return &KV{out: o, meta: o.meta(resultType)}
}

func (o *Output) meta(resultType string) Meta {
	m := NewMeta(resultType)
	m.Hostess = o.hostess
	return m
}

// Render outputs r in the configured format.
func (o *Output) Render(r Renderable) error {
	switch o.format {
	case FormatJSON:
		return o.renderJSON(r)
	case FormatMarkdown:
		return o.renderMarkdown(r)
	default:
		return r.RenderText(o.w)
	}
}

func (o *Output) renderJSON(r Renderable) error {
	envelope := struct {
		Meta Meta `json:"meta"`
		Data any  `json:"data"`
	}{
		Meta: r.Meta(),
		Data: r.RenderJSON(),
	}

	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}

func (o *Output) renderMarkdown(r Renderable) error {
	if _, err := fmt.Fprintln(o.w, "---"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Meta()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if _, err := fmt.Fprint(o.w, "---\n\n"); err != nil {
		return err
	}
	return r.RenderMarkdown(o.w)
}
