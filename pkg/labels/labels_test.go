package labels

import "testing"

func TestParse(t *testing.T) {
	got, err := Parse([]string{"zone=a", " rack = 7 ", "path=/x=y", "zone=b"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]string{"zone": "b", "rack": "7", "path": "/x=y"}
	if len(got) != len(want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"novalue", "=v", " =v"} {
		if _, err := Parse([]string{in}); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := Format(map[string]string{"b": "2", "a": "1"}, ","); got != "a=1,b=2" {
		t.Errorf("Format = %q", got)
	}
	if got := Format(nil, ","); got != "-" {
		t.Errorf("Format(nil) = %q", got)
	}
}

func TestHas(t *testing.T) {
	m := map[string]string{"zone": "a", "tier": ""}
	tests := []struct {
		required map[string]string
		want     bool
	}{
		{nil, true},
		{map[string]string{"zone": "a"}, true},
		{map[string]string{"zone": "b"}, false},
		{map[string]string{"tier": ""}, true},
		{map[string]string{"rack": ""}, false},
	}
	for _, tt := range tests {
		if got := Has(m, tt.required); got != tt.want {
			t.Errorf("Has(%v) = %v, want %v", tt.required, got, tt.want)
		}
	}
}
