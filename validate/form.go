package validate

import (
	"context"
	"net/url"

	"github.com/afroisalreadyinu/drapes/model"
)

// Binding is the outcome of validating a submitted body against a form
// validator. Values always carries the raw submission so a rejected form can
// be re-rendered with error annotations; Data is populated only when the
// binding is valid.
type Binding struct {
	Values url.Values
	Data   map[string]any
	Errors []model.FieldError
}

// Valid reports whether the submission passed validation.
func (b *Binding) Valid() bool { return len(b.Errors) == 0 }

// Value returns the first raw submitted value for the given field.
func (b *Binding) Value(field string) string {
	if b.Values == nil {
		return ""
	}
	return b.Values.Get(field)
}

// FieldErrors returns the errors recorded for one field.
func (b *Binding) FieldErrors(field string) []model.FieldError {
	var out []model.FieldError
	for _, fe := range b.Errors {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}

// FormValidator validates a whole submitted body. The acting subject is
// threaded in for validators that need it (per-user uniqueness checks); it is
// nil when the form spec does not request it.
type FormValidator interface {
	Bind(ctx context.Context, body url.Values, actor any) *Binding
}

// Field declares one form field and its validator.
type Field struct {
	Name      string
	Validator model.Validator
	Required  bool
}

// FormCheck is a whole-form check run after all field validators pass, with
// access to the converted data and the acting subject.
type FormCheck func(ctx context.Context, data map[string]any, actor any) []model.FieldError

// Fields validates each declared field with its validator. Unlike the
// argument resolution pipeline, form validation aggregates all field errors
// so the whole form can be re-rendered at once.
type Fields struct {
	fields []Field
	checks []FormCheck
}

// NewFields builds a field-map form validator. Field declarations are
// validated eagerly: an empty name or nil validator is a programming mistake.
func NewFields(fields []Field, checks ...FormCheck) (*Fields, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, model.Configf("form field with empty name")
		}
		if f.Validator == nil {
			return nil, model.Configf("form field %q has no validator", f.Name)
		}
		if seen[f.Name] {
			return nil, model.Configf("form field %q declared twice", f.Name)
		}
		seen[f.Name] = true
	}
	return &Fields{fields: fields, checks: checks}, nil
}

// MustFields is like NewFields but panics on configuration errors. Intended
// for startup-time form declarations.
func MustFields(fields []Field, checks ...FormCheck) *Fields {
	f, err := NewFields(fields, checks...)
	if err != nil {
		panic(err)
	}
	return f
}

// Bind implements FormValidator.
func (f *Fields) Bind(ctx context.Context, body url.Values, actor any) *Binding {
	b := &Binding{Values: body, Data: make(map[string]any, len(f.fields))}

	for _, field := range f.fields {
		raw, present := firstValue(body, field.Name)
		if !present {
			if field.Required {
				b.Errors = append(b.Errors, model.FieldError{
					Field:   field.Name,
					Code:    "REQUIRED",
					Message: field.Name + " is required",
				})
			}
			continue
		}

		value, err := field.Validator.Convert(ctx, raw, b.Data)
		if err != nil {
			b.Errors = append(b.Errors, model.FieldError{
				Field:   field.Name,
				Code:    "INVALID_VALUE",
				Message: model.Invalid(field.Name, err).Message,
			})
			continue
		}
		b.Data[field.Name] = value
	}

	// Whole-form checks only run on field-level success.
	if len(b.Errors) == 0 {
		for _, check := range f.checks {
			b.Errors = append(b.Errors, check(ctx, b.Data, actor)...)
		}
	}

	if len(b.Errors) > 0 {
		b.Data = nil
	}
	return b
}

func firstValue(body url.Values, name string) (string, bool) {
	vs, ok := body[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
