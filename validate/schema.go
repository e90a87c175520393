package validate

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/afroisalreadyinu/drapes/model"
)

// Schema is a whole-body form validator backed by an OpenAPI schema. The
// submitted values are coerced to the property types the schema declares and
// then validated; every schema violation becomes a field error.
type Schema struct {
	schema *openapi3.Schema
}

// NewSchema wraps an OpenAPI object schema as a form validator.
func NewSchema(s *openapi3.Schema) (*Schema, error) {
	if s == nil {
		return nil, model.Configf("nil schema")
	}
	return &Schema{schema: s}, nil
}

// SchemaFromSpec loads an OpenAPI document and wraps the named component
// schema as a form validator. The document is validated on load so schema
// mistakes surface at startup.
func SchemaFromSpec(path, component string) (*Schema, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("validate: loading %s: %w", path, err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate: validating %s: %w", path, err)
	}

	if doc.Components == nil {
		return nil, model.Configf("spec %s has no component schemas", path)
	}
	ref, ok := doc.Components.Schemas[component]
	if !ok || ref.Value == nil {
		return nil, model.Configf("spec %s has no schema %q", path, component)
	}
	return &Schema{schema: ref.Value}, nil
}

// Bind implements FormValidator.
func (s *Schema) Bind(ctx context.Context, body url.Values, _ any) *Binding {
	b := &Binding{Values: body}

	data, coercionErrs := s.coerce(body)
	if len(coercionErrs) > 0 {
		b.Errors = coercionErrs
		return b
	}

	if err := s.schema.VisitJSON(data, openapi3.MultiErrors()); err != nil {
		b.Errors = schemaFieldErrors(err)
		return b
	}

	b.Data = data
	return b
}

// coerce converts flat form values into the JSON types the schema declares
// for each property. Unknown fields are passed through as strings and left
// for the schema to accept or reject.
func (s *Schema) coerce(body url.Values) (map[string]any, []model.FieldError) {
	data := make(map[string]any, len(body))
	var errs []model.FieldError

	for name, vs := range body {
		if len(vs) == 0 {
			continue
		}
		raw := vs[0]

		prop := s.property(name)
		if prop == nil || prop.Type == nil {
			data[name] = raw
			continue
		}

		switch {
		case prop.Type.Is(openapi3.TypeInteger):
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				errs = append(errs, model.FieldError{Field: name, Code: "INVALID_VALUE", Message: name + " must be an integer"})
				continue
			}
			data[name] = n
		case prop.Type.Is(openapi3.TypeNumber):
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				errs = append(errs, model.FieldError{Field: name, Code: "INVALID_VALUE", Message: name + " must be a number"})
				continue
			}
			data[name] = f
		case prop.Type.Is(openapi3.TypeBoolean):
			v, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				errs = append(errs, model.FieldError{Field: name, Code: "INVALID_VALUE", Message: name + " must be a boolean"})
				continue
			}
			data[name] = v
		default:
			data[name] = raw
		}
	}

	return data, errs
}

func (s *Schema) property(name string) *openapi3.Schema {
	ref, ok := s.schema.Properties[name]
	if !ok || ref == nil {
		return nil
	}
	return ref.Value
}

// schemaFieldErrors flattens kin-openapi validation errors into field errors.
func schemaFieldErrors(err error) []model.FieldError {
	var out []model.FieldError

	var walk func(error)
	walk = func(e error) {
		switch v := e.(type) {
		case openapi3.MultiError:
			for _, sub := range v {
				walk(sub)
			}
		case *openapi3.SchemaError:
			field := ""
			if ptr := v.JSONPointer(); len(ptr) > 0 {
				field = ptr[len(ptr)-1]
			}
			code := "INVALID_VALUE"
			if v.SchemaField == "required" {
				code = "REQUIRED"
			}
			out = append(out, model.FieldError{Field: field, Code: code, Message: v.Reason})
		default:
			out = append(out, model.FieldError{Code: "INVALID_VALUE", Message: e.Error()})
		}
	}
	walk(err)

	return out
}
