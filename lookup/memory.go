package lookup

import (
	"context"
	"reflect"
	"sync"

	"github.com/afroisalreadyinu/drapes/model"
)

// FieldFunc extracts a named field from a stored item. It reports false for
// unknown field names.
type FieldFunc func(item any, field string) (any, bool)

type memoryKind struct {
	field FieldFunc
	items []any
}

// Memory is an in-memory Finder for tests and for running without a
// database. Kinds are registered with a field extractor; items are matched
// by comparing every filter against the extracted field values.
type Memory struct {
	mu    sync.RWMutex
	kinds map[string]*memoryKind
}

// NewMemory creates an empty in-memory finder.
func NewMemory() *Memory {
	return &Memory{kinds: make(map[string]*memoryKind)}
}

// Register declares an entity kind and its field extractor.
func (m *Memory) Register(kind string, field FieldFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[kind] = &memoryKind{field: field}
}

// Add stores items under the given kind. The kind must be registered.
func (m *Memory) Add(kind string, items ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.kinds[kind]
	if !ok {
		panic(model.Configf("memory finder: unregistered kind %q", kind))
	}
	k.items = append(k.items, items...)
}

// FindUnique implements model.Finder.
func (m *Memory) FindUnique(_ context.Context, kind string, filters []model.Filter) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.kinds[kind]
	if !ok {
		return nil, model.Configf("memory finder: unregistered kind %q", kind)
	}

	var found any
	matches := 0
	for _, item := range k.items {
		if matchesAll(k.field, item, filters) {
			matches++
			if matches > 1 {
				return nil, model.ErrMultipleInstances
			}
			found = item
		}
	}
	if matches == 0 {
		return nil, model.ErrNoInstance
	}
	return found, nil
}

// HealthCheck satisfies readiness probes; an in-memory store is always
// reachable.
func (m *Memory) HealthCheck(context.Context) error { return nil }

func matchesAll(field FieldFunc, item any, filters []model.Filter) bool {
	for _, f := range filters {
		value, ok := field(item, f.Field)
		if !ok || !equalValues(value, f.Value) {
			return false
		}
	}
	return true
}

// equalValues compares a stored field against a filter value, normalizing
// integer widths so an int64 from form coercion matches an int field.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.IsValid() && bv.IsValid() && av.CanInt() && bv.CanInt() {
		return av.Int() == bv.Int()
	}
	return false
}
