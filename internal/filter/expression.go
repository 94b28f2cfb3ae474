// Package filter evaluates optional CEL expressions against formatted journal
// records. An empty expression disables filtering.
package filter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/cel-go/cel"

	"jtail/internal/journal"
)

// Expression is a compiled record filter. The zero value allows everything.
type Expression struct {
	source  string
	prog    cel.Program
	enabled bool
}

// Compile parses and type-checks expr. The expression sees:
//
//	fields       map(string, string)  formatted field names to values
//	message      string               MESSAGE, empty when absent
//	realtime_us  int                  entry realtime timestamp
//	tag          string               configured output tag
func Compile(expr string) (*Expression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Expression{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("fields", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("message", cel.StringType),
		cel.Variable("realtime_us", cel.IntType),
		cel.Variable("tag", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("filter environment: %w", err)
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("parse filter %q: %w", expr, iss.Err())
	}
	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("check filter %q: %w", expr, iss.Err())
	}
	switch checked.OutputType().String() {
	case "bool", "dyn":
	default:
		return nil, fmt.Errorf("filter %q must evaluate to bool, got %s", expr, checked.OutputType())
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("build filter program: %w", err)
	}
	return &Expression{source: expr, prog: prog, enabled: true}, nil
}

// Enabled reports whether an expression was configured.
func (x *Expression) Enabled() bool {
	return x != nil && x.enabled
}

// String returns the expression source.
func (x *Expression) String() string {
	if x == nil {
		return ""
	}
	return x.source
}

// Allow evaluates the expression. Evaluation failures and non-boolean results
// return false with the error so callers can log them.
func (x *Expression) Allow(tag string, entry *journal.Entry) (bool, error) {
	if !x.Enabled() || entry == nil {
		return true, nil
	}
	out, _, err := x.prog.Eval(map[string]any{
		"fields":      Fields(entry),
		"message":     string(entry.Message()),
		"realtime_us": entry.Realtime,
		"tag":         tag,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate filter: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter returned %T, want bool", out.Value())
	}
	return allowed, nil
}

// Fields flattens an entry for expression evaluation. The first occurrence of
// a repeated field wins; binary values are exposed with invalid bytes replaced.
func Fields(entry *journal.Entry) map[string]string {
	out := make(map[string]string, entry.Len())
	for _, f := range entry.Fields {
		if _, seen := out[f.Name]; seen {
			continue
		}
		if utf8.Valid(f.Value) {
			out[f.Name] = string(f.Value)
		} else {
			out[f.Name] = strings.ToValidUTF8(string(f.Value), "�")
		}
	}
	return out
}
