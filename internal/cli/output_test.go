package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"text", FormatText},
		{"", FormatText},
		{"JSON", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTableText(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatText, &buf)
	err := out.Table("entries", "ID", "Server Name").
		AddRow("a1", "mixer").
		AddRow("b2", "tap").
		Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := buf.String()
	for _, want := range []string{"ID", "SERVER NAME", "mixer", "tap"} {
		if !strings.Contains(s, want) {
			t.Errorf("text output missing %q:\n%s", want, s)
		}
	}
}

func TestTableTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewOutput(FormatText, &buf).Table("entries", "ID").Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "(none)\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestTableJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatJSON, &buf).ForHostess("localhost:50071")
	if err := out.Table("entries", "ID", "Server Name").AddRow("a1", "mixer").Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var env struct {
		Meta Meta                `json:"meta"`
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if env.Meta.Type != "entries" || env.Meta.Count != 1 {
		t.Errorf("meta = %+v", env.Meta)
	}
	if env.Meta.Hostess != "localhost:50071" {
		t.Errorf("meta.hostess = %q", env.Meta.Hostess)
	}
	if len(env.Data) != 1 || env.Data[0]["server_name"] != "mixer" {
		t.Errorf("data = %v", env.Data)
	}
}

func TestTableMarkdownFrontmatter(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatMarkdown, &buf)
	if err := out.Table("endpoints", "ID", "Type").AddRow("node-b", "tcp").Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := buf.String()
	if !strings.HasPrefix(s, "---\n") {
		t.Errorf("missing frontmatter:\n%s", s)
	}
	if !strings.Contains(s, "type: endpoints") {
		t.Errorf("frontmatter missing type:\n%s", s)
	}
	if !strings.Contains(s, "| node-b |") {
		t.Errorf("missing markdown row:\n%s", s)
	}
}

func TestKV(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewOutput(FormatText, &buf).KV("info").
			Set("Heartbeat Interval", "5s").
			Set("Eviction Threshold", "20s").
			Render()
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(buf.String(), "Heartbeat Interval:") {
			t.Errorf("got:\n%s", buf.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewOutput(FormatJSON, &buf).KV("info").Set("Heartbeat Interval", "5s").Render(); err != nil {
			t.Fatalf("Render: %v", err)
		}
		var env struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Data["heartbeat_interval"] != "5s" {
			t.Errorf("data = %v", env.Data)
		}
	})

	t.Run("markdown escapes pipes", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewOutput(FormatMarkdown, &buf).KV("info").Set("Expr", "a || b").Render(); err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(buf.String(), `**Expr:** a \|\| b`) {
			t.Errorf("got:\n%s", buf.String())
		}
	})
}

func TestKVSections(t *testing.T) {
	build := func(out *Output) *KV {
		return out.KV("info").
			Section("Timing").
			Set("Heartbeat Interval", 5*time.Second).
			Section("Contents").
			Set("Entries", 2).
			Set("Owner", "")
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := build(NewOutput(FormatText, &buf)).Render(); err != nil {
			t.Fatalf("Render: %v", err)
		}
		got := buf.String()
		for _, want := range []string{"TIMING", "Heartbeat Interval:", "5s", "CONTENTS", "Owner:"} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
		if strings.Index(got, "TIMING") > strings.Index(got, "CONTENTS") {
			t.Errorf("sections out of order:\n%s", got)
		}
	})

	t.Run("json nests sections", func(t *testing.T) {
		var buf bytes.Buffer
		if err := build(NewOutput(FormatJSON, &buf)).Render(); err != nil {
			t.Fatalf("Render: %v", err)
		}
		var env struct {
			Data map[string]map[string]any `json:"data"`
		}
		if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Data["timing"]["heartbeat_interval"] != "5s" {
			t.Errorf("timing = %v", env.Data["timing"])
		}
		if env.Data["contents"]["entries"] != float64(2) {
			t.Errorf("contents = %v", env.Data["contents"])
		}
	})

	t.Run("markdown headings", func(t *testing.T) {
		var buf bytes.Buffer
		if err := build(NewOutput(FormatMarkdown, &buf)).Render(); err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(buf.String(), "### Timing") || !strings.Contains(buf.String(), "**Owner:** -") {
			t.Errorf("got:\n%s", buf.String())
		}
	})
}

func TestFormatValue(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{nil, "-"},
		{"", "-"},
		{"mixer", "mixer"},
		{1500 * time.Millisecond, "1.5s"},
		{at, "2026-03-01T12:00:00Z"},
		{time.Time{}, "-"},
		{[]string{"mono", "stereo"}, "mono, stereo"},
		{[]string{}, "-"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
