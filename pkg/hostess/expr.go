package hostess

import (
	"fmt"

	"github.com/gezibash/arc-kernel/internal/cel"
	"github.com/gezibash/arc-kernel/pkg/errors"
)

// exprSchema lists the variables QueryExpr expressions can use.
var exprSchema = cel.Schema{
	"id":         cel.String,
	"servername": cel.String,
	"fqdn":       cel.String,
	"class":      cel.String,
	"owner":      cel.String,
	"role":       cel.String,
	"accepts":    cel.Strings,
	"produces":   cel.Strings,
	"features":   cel.Strings,
	"available":  cel.Bool,
	"terminals":  cel.Strings,
	"metadata":   cel.StringMap,
}

// QueryExpr returns the live entries for which expr holds, e.g.
//
//	"text/plain" in accepts && available && metadata["zone"] == "a"
func (h *Hostess) QueryExpr(expr string) ([]Entry, error) {
	f, err := cel.Compile(expr, exprSchema)
	if err != nil {
		return nil, fmt.Errorf("hostess: query expression: %w: %w", errors.ErrInvalidInput, err)
	}
	return h.collect(func(e *Entry) bool { return f.Match(attributes(e)) }), nil
}

func attributes(e *Entry) map[string]any {
	terminals := make([]string, len(e.Terminals))
	for i, t := range e.Terminals {
		terminals[i] = t.Name
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return map[string]any{
		"id":         e.ID,
		"servername": e.ServerName,
		"fqdn":       e.FQDN,
		"class":      e.ClassHex,
		"owner":      e.Owner,
		"role":       string(e.Capabilities.Role),
		"accepts":    nonNil(e.Capabilities.Accepts),
		"produces":   nonNil(e.Capabilities.Produces),
		"features":   nonNil(e.Capabilities.Features),
		"available":  e.Available(),
		"terminals":  terminals,
		"metadata":   metadata,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
