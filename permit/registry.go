// Package permit implements the permission gate: a write-once registry of
// permission rules per entity kind, and a gate that checks declared
// subject/permission pairs against resolved values.
package permit

import (
	"fmt"
	"sync"

	"github.com/afroisalreadyinu/drapes/model"
)

// Rules declares the permission strategies for one entity kind. A permission
// name may appear under more than one strategy; precedence is fixed at
// registration: Attributes win over Checks, Checks win over Grants. The
// first strategy present for a name is authoritative regardless of the
// boolean it produces.
type Rules struct {
	// Attributes are plain flags read off the subject.
	Attributes map[string]func(subject any) bool
	// Checks are the subject's own zero-argument predicates.
	Checks map[string]func(subject any) bool
	// Grants are policy checks that also receive the acting user.
	Grants map[string]func(subject, actor any) bool
}

type strategy uint8

const (
	attributeStrategy strategy = iota
	checkStrategy
	grantStrategy
)

// provider is one permission resolved to a single strategy at registration.
type provider struct {
	strategy strategy
	self     func(subject any) bool
	grant    func(subject, actor any) bool
}

// Registry is the process-wide table of permission providers, keyed by
// entity kind. It is populated during application startup and frozen before
// serving: a frozen registry is read-only and safe for unsynchronized
// concurrent reads.
type Registry struct {
	mu     sync.Mutex
	frozen bool
	byKind map[string]map[string]provider
}

// NewRegistry creates an empty permission registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[string]map[string]provider)}
}

// Register installs the rules for an entity kind, resolving each permission
// name to exactly one strategy. Registering a kind twice or after Freeze is
// a configuration error.
func (r *Registry) Register(kind string, rules Rules) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return model.Configf("permission registry is frozen; register %q during startup", kind)
	}
	if kind == "" {
		return model.Configf("permission rules with empty kind")
	}
	if _, ok := r.byKind[kind]; ok {
		return model.Configf("permission rules for kind %q registered twice", kind)
	}

	providers := make(map[string]provider)
	for name, fn := range rules.Grants {
		providers[name] = provider{strategy: grantStrategy, grant: fn}
	}
	for name, fn := range rules.Checks {
		providers[name] = provider{strategy: checkStrategy, self: fn}
	}
	for name, fn := range rules.Attributes {
		providers[name] = provider{strategy: attributeStrategy, self: fn}
	}

	r.byKind[kind] = providers
	return nil
}

// MustRegister is like Register but panics on configuration errors.
func (r *Registry) MustRegister(kind string, rules Rules) {
	if err := r.Register(kind, rules); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only. Call it once startup registration is
// complete.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Allowed evaluates one permission for a subject. An unregistered kind or an
// unknown permission name is a configuration error, distinct from a denial.
func (r *Registry) Allowed(subject, actor any, permission string) (bool, error) {
	entity, ok := subject.(model.Entity)
	if !ok {
		return false, model.Configf("subject of type %T does not implement model.Entity", subject)
	}

	providers, ok := r.byKind[entity.Kind()]
	if !ok {
		// The anonymous sentinel is denied by default; every other
		// unregistered kind is a programming mistake.
		if model.IsAnonymous(subject) {
			return false, nil
		}
		return false, model.Configf("no permission rules registered for kind %q", entity.Kind())
	}
	p, ok := providers[permission]
	if !ok {
		return false, model.Configf("permission %q is not applicable to kind %q", permission, entity.Kind())
	}

	if p.strategy == grantStrategy {
		return p.grant(subject, actor), nil
	}
	return p.self(subject), nil
}

// Attr adapts a typed flag accessor to the registry's untyped signature. A
// subject of the wrong dynamic type is a programming mistake and panics.
func Attr[T any](fn func(T) bool) func(any) bool {
	return func(subject any) bool {
		v, ok := subject.(T)
		if !ok {
			panic(fmt.Sprintf("permit: subject %T registered for a different type", subject))
		}
		return fn(v)
	}
}

// Grant adapts a typed policy check to the registry's untyped signature.
func Grant[T any](fn func(subject T, actor any) bool) func(any, any) bool {
	return func(subject, actor any) bool {
		v, ok := subject.(T)
		if !ok {
			panic(fmt.Sprintf("permit: subject %T registered for a different type", subject))
		}
		return fn(v, actor)
	}
}
