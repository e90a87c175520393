package model

import (
	"context"
	"errors"
)

// Entity identifies a domain object by its kind. The permission and view
// registries key their registrations on the kind string, so every object that
// participates in permission checks or view dispatch implements Entity.
type Entity interface {
	Kind() string
}

// Anonymous is the acting subject for unauthenticated requests.
type Anonymous struct{}

// Kind implements Entity.
func (Anonymous) Kind() string { return "anonymous" }

// Validator converts a raw candidate value into a domain value. resolved
// carries the arguments resolved so far in declaration order, so a validator
// may reference other already-converted values (cross-argument lookups).
// A failed conversion returns a *ValidationError.
type Validator interface {
	Convert(ctx context.Context, raw any, resolved map[string]any) (any, error)
}

// Lookup failure sentinels reported by Finder implementations.
var (
	// ErrNoInstance is returned when no entity matches the filters.
	ErrNoInstance = errors.New("no instance could be found")
	// ErrMultipleInstances is returned when more than one entity matches.
	ErrMultipleInstances = errors.New("multiple entries for validator")
)

// Filter is one field/value pair of a unique-lookup query. Filters are
// applied in declaration order.
type Filter struct {
	Field string
	Value any
}

// Finder is the storage collaborator contract: a unique lookup of one entity
// kind by field/value filters. Implementations report ErrNoInstance and
// ErrMultipleInstances; everything else is an infrastructure failure.
type Finder interface {
	FindUnique(ctx context.Context, kind string, filters []Filter) (any, error)
}
