// Package labels parses and formats the key=value metadata attached to
// registry entries and endpoints.
package labels

import (
	"fmt"
	"sort"
	"strings"
)

// Parse converts "key=value" strings to a map. Later keys win.
func Parse(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid label format: %s (expected key=value)", p)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid label: empty key in %q", p)
		}
		result[key] = strings.TrimSpace(value)
	}
	return result, nil
}

// Format renders m as sorted "k=v" pairs joined by sep, or "-" when empty.
func Format(m map[string]string, sep string) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, sep)
}

// Has reports whether m contains every pair in required.
func Has(m, required map[string]string) bool {
	for k, v := range required {
		if got, ok := m[k]; !ok || got != v {
			return false
		}
	}
	return true
}
