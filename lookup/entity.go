// Package lookup provides the entity lookup validator and storage
// collaborator implementations. The validator converts raw request input
// into a stored entity by issuing a unique lookup against a Finder.
package lookup

import (
	"context"
	"errors"

	"github.com/afroisalreadyinu/drapes/model"
)

// Identifiable exposes an entity's identity key. When a lookup filter
// references an already-resolved entity, its identity key is used as the
// filter value rather than the entity itself.
type Identifiable interface {
	IdentityKey() any
}

type sourceKind uint8

const (
	fromRaw sourceKind = iota
	fromResolved
	fromLiteral
)

// Source describes where one lookup filter field takes its value from.
// Sources are explicit variants rather than probed strings, so a
// misconfigured reference fails loudly instead of silently matching nothing.
type Source struct {
	field string
	kind  sourceKind
	ref   string
	value any
}

// Raw takes the filter value from the raw input being validated.
func Raw(field string) Source {
	return Source{field: field, kind: fromRaw}
}

// Resolved takes the filter value from another already-resolved argument.
// If the resolved value is Identifiable, its identity key is used.
func Resolved(field, argName string) Source {
	return Source{field: field, kind: fromResolved, ref: argName}
}

// Literal uses a fixed value for the filter field.
func Literal(field string, value any) Source {
	return Source{field: field, kind: fromLiteral, value: value}
}

// entityValidator resolves raw input into a unique stored entity.
type entityValidator struct {
	kind    string
	finder  model.Finder
	sources []Source
}

// Entity builds a validator that looks up one entity of the given kind.
// getBy declares the filter fields in lookup order; when omitted, the
// entity's identity key field "id" is matched against the raw input.
func Entity(kind string, finder model.Finder, getBy ...Source) (model.Validator, error) {
	if kind == "" {
		return nil, model.Configf("entity validator with empty kind")
	}
	if finder == nil {
		return nil, model.Configf("entity validator %q has no finder", kind)
	}
	if len(getBy) == 0 {
		getBy = []Source{Raw("id")}
	}
	seen := make(map[string]bool, len(getBy))
	for _, src := range getBy {
		if src.field == "" {
			return nil, model.Configf("entity validator %q has a filter with empty field", kind)
		}
		if seen[src.field] {
			return nil, model.Configf("entity validator %q declares field %q twice", kind, src.field)
		}
		seen[src.field] = true
	}
	return &entityValidator{kind: kind, finder: finder, sources: getBy}, nil
}

// MustEntity is like Entity but panics on configuration errors. Intended for
// startup-time declarations.
func MustEntity(kind string, finder model.Finder, getBy ...Source) model.Validator {
	v, err := Entity(kind, finder, getBy...)
	if err != nil {
		panic(err)
	}
	return v
}

// Convert implements model.Validator. Filters are built in declaration
// order; zero matches and multiple matches are user-input failures, while a
// dangling resolved-argument reference is a programming mistake.
func (v *entityValidator) Convert(ctx context.Context, raw any, resolved map[string]any) (any, error) {
	filters := make([]model.Filter, 0, len(v.sources))
	for _, src := range v.sources {
		switch src.kind {
		case fromRaw:
			filters = append(filters, model.Filter{Field: src.field, Value: raw})
		case fromResolved:
			value, ok := resolved[src.ref]
			if !ok {
				return nil, model.Configf(
					"entity validator %q references unresolved argument %q", v.kind, src.ref)
			}
			filters = append(filters, model.Filter{Field: src.field, Value: identity(value)})
		case fromLiteral:
			filters = append(filters, model.Filter{Field: src.field, Value: src.value})
		}
	}

	entity, err := v.finder.FindUnique(ctx, v.kind, filters)
	switch {
	case errors.Is(err, model.ErrNoInstance):
		return nil, &model.ValidationError{Message: model.ErrNoInstance.Error(), Err: err}
	case errors.Is(err, model.ErrMultipleInstances):
		return nil, &model.ValidationError{Message: model.ErrMultipleInstances.Error(), Err: err}
	case err != nil:
		return nil, err
	}
	return entity, nil
}

func identity(value any) any {
	if id, ok := value.(Identifiable); ok {
		return id.IdentityKey()
	}
	return value
}
