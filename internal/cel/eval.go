// Package cel compiles CEL expressions used to select registry entries.
package cel

import (
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Schema declares the variables an expression may reference.
type Schema map[string]*cel.Type

// Common variable types.
var (
	String    = cel.StringType
	Bool      = cel.BoolType
	Int       = cel.IntType
	Strings   = cel.ListType(cel.StringType)
	StringMap = cel.MapType(cel.StringType, cel.StringType)
	Dynamic   = cel.DynType
)

// Filter is a compiled boolean expression.
type Filter struct {
	expr    string
	program cel.Program
}

// Compile parses and type-checks expr against schema. The expression must
// evaluate to a bool.
func Compile(expr string, schema Schema) (*Filter, error) {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	slices.Sort(names)

	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, cel.Variable(name, schema[name]))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(types.BoolType) && !ast.OutputType().IsExactType(types.DynType) {
		return nil, fmt.Errorf("cel compile: expression yields %s, want bool", ast.OutputType())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	return &Filter{expr: expr, program: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Match evaluates the filter against attrs.
// Evaluation errors (missing keys, no such map entry) count as no match.
func (f *Filter) Match(attrs map[string]any) bool {
	out, _, err := f.program.Eval(attrs)
	if err != nil {
		return false
	}
	if out.Type() != types.BoolType {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
