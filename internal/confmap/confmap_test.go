package confmap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetString(t *testing.T) {
	config := map[string]string{"key": "value"}

	if got := GetString(config, "key", "default"); got != "value" {
		t.Errorf("GetString = %q, want %q", got, "value")
	}
	if got := GetString(config, "missing", "default"); got != "default" {
		t.Errorf("GetString = %q, want %q", got, "default")
	}
	if got := GetString(map[string]string{"key": ""}, "key", "default"); got != "default" {
		t.Errorf("GetString empty = %q, want %q", got, "default")
	}
}

func TestGetBool(t *testing.T) {
	config := map[string]string{"yes": "true", "no": "false", "bad": "maybe"}

	if v, err := GetBool(config, "yes", false); err != nil || !v {
		t.Errorf("GetBool yes: got %v, %v", v, err)
	}
	if v, err := GetBool(config, "no", true); err != nil || v {
		t.Errorf("GetBool no: got %v, %v", v, err)
	}
	if v, err := GetBool(config, "missing", true); err != nil || !v {
		t.Errorf("GetBool missing: got %v, %v", v, err)
	}
	if _, err := GetBool(config, "bad", false); err == nil {
		t.Error("GetBool bad: expected error")
	}
}

func TestGetInt(t *testing.T) {
	config := map[string]string{"num": "42", "bad": "abc"}

	if v, err := GetInt(config, "num", 0); err != nil || v != 42 {
		t.Errorf("GetInt = %d, %v", v, err)
	}
	if v, err := GetInt(config, "missing", 99); err != nil || v != 99 {
		t.Errorf("GetInt missing = %d, %v", v, err)
	}
	_, err := GetInt(config, "bad", 0)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "bad" {
		t.Errorf("GetInt bad: expected ConfigError for field, got %v", err)
	}
}

func TestGetDuration(t *testing.T) {
	config := map[string]string{"dur": "5s", "ms": "250", "bad": "abc"}

	if v, err := GetDuration(config, "dur", 0); err != nil || v != 5*time.Second {
		t.Errorf("GetDuration dur = %v, %v", v, err)
	}
	if v, err := GetDuration(config, "ms", 0); err != nil || v != 250*time.Millisecond {
		t.Errorf("GetDuration ms = %v, %v", v, err)
	}
	if v, err := GetDuration(config, "missing", time.Minute); err != nil || v != time.Minute {
		t.Errorf("GetDuration missing = %v, %v", v, err)
	}
	if _, err := GetDuration(config, "bad", 0); err == nil {
		t.Error("GetDuration bad: expected error")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/sock/ctl"); got != filepath.Join(home, "sock/ctl") {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/tmp/../tmp/x"); got != "/tmp/x" {
		t.Errorf("ExpandPath clean = %q", got)
	}
}

func TestMerge(t *testing.T) {
	dst := map[string]string{"a": "1", "b": "2"}
	src := map[string]string{"b": "3"}
	got := Merge(dst, src)
	if got["a"] != "1" || got["b"] != "3" {
		t.Errorf("Merge = %v", got)
	}
	if dst["b"] != "2" {
		t.Error("Merge must not mutate dst")
	}
}

func TestConfigError_Format(t *testing.T) {
	err := NewConfigErrorWithValue("unix", "path", "", "cannot be empty")
	if !strings.Contains(err.Error(), "unix: path: cannot be empty") {
		t.Errorf("unexpected message %q", err.Error())
	}
	err = NewConfigErrorWithValue("tcp", "port", "x", "must be an integer")
	if !strings.Contains(err.Error(), `port="x"`) {
		t.Errorf("unexpected message %q", err.Error())
	}
}
