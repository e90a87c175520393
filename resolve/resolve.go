// Package resolve implements the argument resolution pipeline: a single-pass
// transform of raw call input into validated domain values. Declared
// arguments are converted in declaration order and the pipeline stops at the
// first validation failure.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/afroisalreadyinu/drapes/model"
)

// Arg declares one pipeline argument: its name, the validator that converts
// its raw value, and an optional default used when the call carries no value.
// A nil Default means the argument is required.
type Arg struct {
	Name      string
	Validator model.Validator
	Default   any
}

// Spec is an ordered, validated set of argument declarations. Construct it
// once at startup; it is immutable and safe for concurrent use.
type Spec struct {
	args     []Arg
	declared map[string]bool
}

// NewSpec validates the declarations: every argument needs a unique name and
// exactly one validator. Violations are configuration errors, not request
// failures.
func NewSpec(args ...Arg) (*Spec, error) {
	declared := make(map[string]bool, len(args))
	for _, a := range args {
		if a.Name == "" {
			return nil, model.Configf("declared argument with empty name")
		}
		if a.Validator == nil {
			return nil, model.Configf("declared argument %q has no validator", a.Name)
		}
		if declared[a.Name] {
			return nil, model.Configf("argument %q declared twice", a.Name)
		}
		declared[a.Name] = true
	}
	return &Spec{args: args, declared: declared}, nil
}

// MustSpec is like NewSpec but panics on configuration errors. Intended for
// startup-time endpoint declarations.
func MustSpec(args ...Arg) *Spec {
	s, err := NewSpec(args...)
	if err != nil {
		panic(err)
	}
	return s
}

// Declares reports whether the spec declares a validator for name.
func (s *Spec) Declares(name string) bool { return s.declared[name] }

// Resolve converts the call's raw values into domain values.
//
// Candidate values come from the call arguments; for read-type requests,
// query-string parameters overlay them, so a query value for a declared name
// wins over the call argument. The overlay is opt-in per declared argument,
// never implicit: undeclared query parameters are ignored entirely.
//
// Arguments resolve in declaration order, each validator receiving the
// values resolved so far so it can reference them. The first validation
// failure stops the pipeline. A declared argument with neither a candidate
// value nor a default is a configuration error, not a request failure.
//
// Call arguments without a declared validator pass through unchanged.
func (s *Spec) Resolve(ctx context.Context, call *model.Call) (map[string]any, error) {
	resolved := make(map[string]any, len(call.Args)+len(s.args))
	for name, value := range call.Args {
		resolved[name] = value
	}

	for _, arg := range s.args {
		raw, ok := call.Arg(arg.Name)
		if call.IsRead() {
			// The query string overlays the call arguments: a query value
			// for a declared name wins over the argument's own value.
			if qv, qok := call.QueryValue(arg.Name); qok {
				raw, ok = qv, true
			}
		}
		if !ok {
			if arg.Default == nil {
				return nil, model.Configf("declared argument %q has no value and no default", arg.Name)
			}
			raw = arg.Default
		}

		value, err := arg.Validator.Convert(ctx, raw, resolved)
		if err != nil {
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				return nil, model.Invalid(arg.Name, ve)
			}
			// Configuration and infrastructure failures propagate untranslated.
			return nil, fmt.Errorf("resolve: argument %q: %w", arg.Name, err)
		}
		resolved[arg.Name] = value
	}

	return resolved, nil
}
