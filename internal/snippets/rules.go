package snippets

import (
	"fmt"
	"html/template"

	"github.com/afroisalreadyinu/drapes/permit"
	"github.com/afroisalreadyinu/drapes/render"
)

// RegisterRules installs the permission rules for users and snippets and
// freezes the registry.
//
// A user may "post" while active; "admin" is a plain flag. A snippet may be
// viewed by anyone once published, and edited or deleted only by its owner
// or an admin.
func RegisterRules(registry *permit.Registry) error {
	if err := registry.Register(KindUser, permit.Rules{
		Attributes: map[string]func(any) bool{
			"admin": permit.Attr(func(u User) bool { return u.Admin }),
		},
		Checks: map[string]func(any) bool{
			"post": permit.Attr(func(u User) bool { return u.Active }),
		},
	}); err != nil {
		return err
	}

	if err := registry.Register(KindSnippet, permit.Rules{
		Grants: map[string]func(any, any) bool{
			"view": permit.Grant(func(s Snippet, actor any) bool {
				return s.Published || isOwnerOrAdmin(s, actor)
			}),
			"edit": permit.Grant(func(s Snippet, actor any) bool {
				return isOwnerOrAdmin(s, actor)
			}),
			"delete": permit.Grant(func(s Snippet, actor any) bool {
				return isOwnerOrAdmin(s, actor)
			}),
		},
	}); err != nil {
		return err
	}

	registry.Freeze()
	return nil
}

func isOwnerOrAdmin(s Snippet, actor any) bool {
	u, ok := actor.(User)
	return ok && (u.Admin || u.ID == s.OwnerID)
}

// RegisterViews installs the template view fragments for snippets and users.
func RegisterViews(views *render.Views) error {
	if err := views.Register(KindSnippet, map[string]render.Fragment{
		"summary": func(entity any, _ ...any) (template.HTML, error) {
			s := entity.(Snippet)
			return template.HTML(fmt.Sprintf(
				`<article class="snippet"><h3>%s</h3><p>%s</p></article>`,
				template.HTMLEscapeString(s.Title), template.HTMLEscapeString(excerpt(s.Body, 120)))), nil
		},
		"link": func(entity any, _ ...any) (template.HTML, error) {
			s := entity.(Snippet)
			return template.HTML(fmt.Sprintf(`<a href="/snippets/%s">%s</a>`,
				template.HTMLEscapeString(s.Slug), template.HTMLEscapeString(s.Title))), nil
		},
	}); err != nil {
		return err
	}

	return views.Register(KindUser, map[string]render.Fragment{
		"badge": func(entity any, _ ...any) (template.HTML, error) {
			u := entity.(User)
			return template.HTML(fmt.Sprintf(`<span class="user">%s</span>`,
				template.HTMLEscapeString(u.Username))), nil
		},
	})
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
