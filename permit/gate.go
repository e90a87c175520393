package permit

import (
	"github.com/afroisalreadyinu/drapes/model"
)

// ActorName is the special subject name denoting the acting user.
const ActorName = "user"

// Check declares one permission requirement: the subject is either ActorName
// or the name of a resolved argument.
type Check struct {
	Subject    string
	Permission string
}

// Gate evaluates declared permission checks against resolved values.
type Gate struct {
	registry *Registry
	checks   []Check
}

// NewGate builds a gate over the given registry. Empty subjects or
// permission names are configuration errors.
func NewGate(registry *Registry, checks ...Check) (*Gate, error) {
	if registry == nil {
		return nil, model.Configf("permission gate without a registry")
	}
	for _, c := range checks {
		if c.Subject == "" || c.Permission == "" {
			return nil, model.Configf("permission check with empty subject or permission")
		}
	}
	return &Gate{registry: registry, checks: checks}, nil
}

// MustGate is like NewGate but panics on configuration errors.
func MustGate(registry *Registry, checks ...Check) *Gate {
	g, err := NewGate(registry, checks...)
	if err != nil {
		panic(err)
	}
	return g
}

// Check evaluates the declared pairs in declaration order and stops at the
// first denial. A subject name absent from the resolved values is a
// configuration error, never a denial.
func (g *Gate) Check(resolved map[string]any, actor any) error {
	for _, c := range g.checks {
		subject := actor
		if c.Subject != ActorName {
			var ok bool
			subject, ok = resolved[c.Subject]
			if !ok {
				return model.Configf("permission subject %q is not a resolved argument", c.Subject)
			}
		}

		allowed, err := g.registry.Allowed(subject, actor, c.Permission)
		if err != nil {
			return err
		}
		if !allowed {
			return &model.PermissionDenied{Subject: c.Subject, Permission: c.Permission}
		}
	}
	return nil
}
