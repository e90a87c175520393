// Package dispatch routes submitted form bodies to their validators and
// handlers. A registry holds one form, or several distinguished by a
// discriminator field in the body; the dispatch outcome tells the endpoint
// whether to run its default handler, re-render with validation errors, or
// answer with a delegated handler's result.
package dispatch

import (
	"context"

	"github.com/afroisalreadyinu/drapes/model"
	"github.com/afroisalreadyinu/drapes/validate"
)

// Reserved argument names the endpoint injects into the resolved values. An
// argument resolution spec declaring either of them is a configuration error.
const (
	// FormArg carries the validated form data.
	FormArg = "form"
	// InvalidFormArg carries the rejected binding for re-rendering.
	InvalidFormArg = "invalid_form"
)

// Handler consumes a validated form submission. It receives the converted
// form data and the resolved pipeline arguments; its return value is the
// endpoint's response.
type Handler func(ctx context.Context, data map[string]any, resolved map[string]any, actor any) (any, error)

// FormSpec pairs one form validator with the handler that consumes its
// validated data.
type FormSpec struct {
	Validator validate.FormValidator
	Handler   Handler
	// NeedsActor threads the acting subject into Bind. Validators that do
	// per-user checks set it; everything else binds with a nil actor.
	NeedsActor bool
}

// Outcome is the dispatch decision for one request.
type Outcome int

const (
	// PassThrough means no body was submitted; the endpoint's default
	// handler runs.
	PassThrough Outcome = iota
	// Rejected means the submission failed validation; the endpoint
	// re-renders with the binding's errors.
	Rejected
	// Delegated means a form handler ran and produced the response.
	Delegated
)

// Result is the outcome of dispatching one call.
type Result struct {
	Outcome Outcome
	// Value is the form handler's return value when Outcome is Delegated.
	Value any
	// Invalid is the failed binding when Outcome is Rejected.
	Invalid *validate.Binding
}

// Registry maps submitted bodies to form specs. With a single spec every
// body goes to it; with several, a discriminator field in the body selects
// the spec by name.
type Registry struct {
	single        *FormSpec
	discriminator string
	forms         map[string]FormSpec
}

// Single builds a registry that routes every submitted body to one spec.
func Single(spec FormSpec) (*Registry, error) {
	if err := checkSpec("", spec); err != nil {
		return nil, err
	}
	return &Registry{single: &spec}, nil
}

// NewRegistry builds a registry that selects among several specs by the
// named discriminator field.
func NewRegistry(discriminator string, forms map[string]FormSpec) (*Registry, error) {
	if discriminator == "" {
		return nil, model.Configf("form registry with empty discriminator field")
	}
	if len(forms) == 0 {
		return nil, model.Configf("form registry with no forms")
	}
	for name, spec := range forms {
		if name == "" {
			return nil, model.Configf("form registered with empty name")
		}
		if err := checkSpec(name, spec); err != nil {
			return nil, err
		}
	}
	return &Registry{discriminator: discriminator, forms: forms}, nil
}

// MustSingle is like Single but panics on configuration errors.
func MustSingle(spec FormSpec) *Registry {
	r, err := Single(spec)
	if err != nil {
		panic(err)
	}
	return r
}

// MustRegistry is like NewRegistry but panics on configuration errors.
func MustRegistry(discriminator string, forms map[string]FormSpec) *Registry {
	r, err := NewRegistry(discriminator, forms)
	if err != nil {
		panic(err)
	}
	return r
}

func checkSpec(name string, spec FormSpec) error {
	if spec.Validator == nil {
		return model.Configf("form %q has no validator", name)
	}
	if spec.Handler == nil {
		return model.Configf("form %q has no handler", name)
	}
	return nil
}

// Dispatch routes the call's submitted body. Calls without a body pass
// through. A missing, repeated, or unknown discriminator value is answered
// with an UNKNOWN_FORM error, not treated as a pass-through: a submitted body
// must always land on exactly one form.
func (r *Registry) Dispatch(ctx context.Context, call *model.Call, resolved map[string]any, actor any) (*Result, error) {
	if !call.HasBody() {
		return &Result{Outcome: PassThrough}, nil
	}

	spec := r.single
	if spec == nil {
		values := call.Form[r.discriminator]
		if len(values) == 0 || values[0] == "" {
			return nil, model.NewUnknownFormError("missing form discriminator " + r.discriminator)
		}
		// A body must select exactly one form; repeated discriminator
		// values make the selection ambiguous.
		if len(values) > 1 {
			return nil, model.NewUnknownFormError("multiple values for form discriminator " + r.discriminator)
		}
		name := values[0]
		s, ok := r.forms[name]
		if !ok {
			return nil, model.NewUnknownFormError("unknown form " + name)
		}
		spec = &s
	}

	var bindActor any
	if spec.NeedsActor {
		bindActor = actor
	}
	binding := spec.Validator.Bind(ctx, call.Form, bindActor)
	if !binding.Valid() {
		return &Result{Outcome: Rejected, Invalid: binding}, nil
	}

	value, err := spec.Handler(ctx, binding.Data, resolved, actor)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: Delegated, Value: value}, nil
}
