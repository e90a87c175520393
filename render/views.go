package render

import (
	"html/template"

	"github.com/afroisalreadyinu/drapes/model"
	"github.com/afroisalreadyinu/drapes/permit"
)

// Fragment renders one named view of an entity. Extra arguments come from
// the template call site.
type Fragment func(entity any, args ...any) (template.HTML, error)

// Views is a registry of entity view fragments, keyed by entity kind and
// view name. Like the permission registry it is populated at startup.
type Views struct {
	byKind map[string]map[string]Fragment
}

// NewViews creates an empty view registry.
func NewViews() *Views {
	return &Views{byKind: make(map[string]map[string]Fragment)}
}

// Register installs the named fragments for an entity kind.
func (v *Views) Register(kind string, fragments map[string]Fragment) error {
	if kind == "" {
		return model.Configf("view fragments with empty kind")
	}
	if _, ok := v.byKind[kind]; ok {
		return model.Configf("view fragments for kind %q registered twice", kind)
	}
	v.byKind[kind] = fragments
	return nil
}

// MustRegister is like Register but panics on configuration errors.
func (v *Views) MustRegister(kind string, fragments map[string]Fragment) {
	if err := v.Register(kind, fragments); err != nil {
		panic(err)
	}
}

// Invoke renders the named view of an entity. Unknown kinds and view names
// are configuration errors so a typo in a template fails the render instead
// of emitting nothing.
func (v *Views) Invoke(entity any, name string, args ...any) (template.HTML, error) {
	e, ok := entity.(model.Entity)
	if !ok {
		return "", model.Configf("view subject of type %T does not implement model.Entity", entity)
	}
	fragments, ok := v.byKind[e.Kind()]
	if !ok {
		return "", model.Configf("no views registered for kind %q", e.Kind())
	}
	fragment, ok := fragments[name]
	if !ok {
		return "", model.Configf("view %q is not registered for kind %q", name, e.Kind())
	}
	return fragment(entity, args...)
}

// Funcs builds the template function map exposing the view and permission
// registries inside templates:
//
//	{{ entityview .Snippet "summary" }}
//	{{ if allowed .User "edit" .Snippet }} ... {{ end }}
func Funcs(views *Views, registry *permit.Registry) template.FuncMap {
	return template.FuncMap{
		"entityview": func(entity any, name string, args ...any) (template.HTML, error) {
			return views.Invoke(entity, name, args...)
		},
		"allowed": func(actor any, permission string, subject any) (bool, error) {
			return registry.Allowed(subject, actor, permission)
		},
	}
}
