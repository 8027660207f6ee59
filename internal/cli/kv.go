package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// KV renders a record as labeled values, optionally grouped into sections.
// Created via Output.KV().
type KV struct {
	out      *Output
	meta     Meta
	sections []kvSection
}

type kvSection struct {
	title string // empty for the leading, untitled group
	pairs []kvPair
}

type kvPair struct {
	key   string
	value any
}

// Set adds key to the current section.
func (k *KV) Set(key string, value any) *KV {
	if len(k.sections) == 0 {
		k.sections = append(k.sections, kvSection{})
	}
	last := &k.sections[len(k.sections)-1]
	last.pairs = append(last.pairs, kvPair{key: key, value: value})
	return k
}

// Section starts a titled group; later Sets land in it.
func (k *KV) Section(title string) *KV {
	k.sections = append(k.sections, kvSection{title: title})
	return k
}

func (k *KV) Render() error {
	return k.out.Render(k)
}

func (k *KV) Meta() Meta {
	return k.meta
}

// formatValue prints durations and times the way operators type them and
// shows empty values as a dash.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return "-"
		}
		return x
	case time.Duration:
		return x.String()
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.UTC().Format(time.RFC3339)
	case []string:
		if len(x) == 0 {
			return "-"
		}
		return strings.Join(x, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case time.Duration:
		return x.String()
	case nil:
		return nil
	default:
		return v
	}
}

func (k *KV) RenderText(w io.Writer) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateHeader = false

	rows := 0
	for i, s := range k.sections {
		if s.title != "" {
			if i > 0 && rows > 0 {
				tw.AppendRow(table.Row{"", ""})
			}
			tw.AppendRow(table.Row{strings.ToUpper(s.title), ""})
		}
		for _, p := range s.pairs {
			key := p.key + ":"
			if s.title != "" {
				key = "  " + key
			}
			tw.AppendRow(table.Row{key, formatValue(p.value)})
			rows++
		}
	}
	if rows == 0 {
		return nil
	}
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

// RenderJSON nests titled sections under their snake_case title.
func (k *KV) RenderJSON() any {
	result := make(map[string]any)
	for _, s := range k.sections {
		target := result
		if s.title != "" {
			target = make(map[string]any, len(s.pairs))
			result[toJSONKey(s.title)] = target
		}
		for _, p := range s.pairs {
			target[toJSONKey(p.key)] = jsonValue(p.value)
		}
	}
	return result
}

func (k *KV) RenderMarkdown(w io.Writer) error {
	for _, s := range k.sections {
		if s.title != "" {
			if _, err := fmt.Fprintf(w, "### %s\n\n", s.title); err != nil {
				return err
			}
		}
		for _, p := range s.pairs {
			v := strings.ReplaceAll(formatValue(p.value), "|", "\\|")
			if _, err := fmt.Fprintf(w, "**%s:** %s\n\n", p.key, v); err != nil {
				return err
			}
		}
	}
	return nil
}
