package snippets

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/afroisalreadyinu/drapes/dispatch"
	"github.com/afroisalreadyinu/drapes/internal/observability"
	"github.com/afroisalreadyinu/drapes/lookup"
	"github.com/afroisalreadyinu/drapes/model"
	"github.com/afroisalreadyinu/drapes/permit"
	"github.com/afroisalreadyinu/drapes/render"
	"github.com/afroisalreadyinu/drapes/resolve"
	"github.com/afroisalreadyinu/drapes/validate"
	"github.com/afroisalreadyinu/drapes/web"
)

//go:embed templates/*.html
var templateFS embed.FS

// App bundles everything the router needs: storage, permission rules, view
// fragments, and parsed templates.
type App struct {
	Repo      Repository
	Registry  *permit.Registry
	Views     *render.Views
	Templates *template.Template
	logger    *zap.Logger
}

// NewApp wires the demo application: permission rules and view fragments are
// registered, and the embedded templates parsed with the presentation
// helpers attached.
func NewApp(repo Repository, logger *zap.Logger) (*App, error) {
	return newApp(repo, logger, func(root *template.Template) (*template.Template, error) {
		return root.ParseFS(templateFS, "templates/*.html")
	})
}

// NewAppFromGlob is like NewApp but parses templates from the filesystem, for
// deployments that override the embedded defaults.
func NewAppFromGlob(repo Repository, glob string, logger *zap.Logger) (*App, error) {
	return newApp(repo, logger, func(root *template.Template) (*template.Template, error) {
		return root.ParseGlob(glob)
	})
}

func newApp(repo Repository, logger *zap.Logger, parse func(*template.Template) (*template.Template, error)) (*App, error) {
	registry := permit.NewRegistry()
	if err := RegisterRules(registry); err != nil {
		return nil, err
	}

	views := render.NewViews()
	if err := RegisterViews(views); err != nil {
		return nil, err
	}

	templates, err := parse(template.New("snippets").Funcs(render.Funcs(views, registry)))
	if err != nil {
		return nil, fmt.Errorf("snippets: parsing templates: %w", err)
	}

	return &App{
		Repo:      repo,
		Registry:  registry,
		Views:     views,
		Templates: templates,
		logger:    logger,
	}, nil
}

// Routes mounts the demo endpoints on a router.
func (a *App) Routes(r chi.Router) error {
	viewSnippet, err := a.viewSnippetHandler()
	if err != nil {
		return err
	}
	newSnippet, err := a.newSnippetHandler()
	if err != nil {
		return err
	}
	editSnippet, err := a.editSnippetHandler()
	if err != nil {
		return err
	}
	profile, err := a.profileHandler()
	if err != nil {
		return err
	}
	feedback, err := a.feedbackHandler()
	if err != nil {
		return err
	}

	r.Get("/users/{username}", profile)
	r.Get("/snippets/new", newSnippet)
	r.Post("/snippets/new", newSnippet)
	r.Get("/snippets/{slug}", viewSnippet)
	r.Get("/snippets/{slug}/edit", editSnippet)
	r.Post("/snippets/{slug}/edit", editSnippet)
	r.Post("/feedback", feedback)
	return nil
}

// viewSnippetHandler serves one snippet, gated on its view permission.
func (a *App) viewSnippetHandler() (http.HandlerFunc, error) {
	return web.NewHandler(web.Endpoint{
		Resolve: resolve.MustSpec(resolve.Arg{
			Name:      "slug",
			Validator: lookup.MustEntity(KindSnippet, a.Repo, lookup.Raw("slug")),
		}),
		Require:  []permit.Check{{Subject: "slug", Permission: "view"}},
		Registry: a.Registry,
		Handler: func(ctx context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			s := resolved["slug"].(Snippet)

			data := map[string]any{
				"Snippet": s,
				"User":    model.ActorFrom(ctx),
			}
			if owner, err := a.Repo.FindUnique(ctx, KindUser, []model.Filter{{Field: "id", Value: s.OwnerID}}); err == nil {
				data["Owner"] = owner
			}
			return data, nil
		},
		Renderer: render.MustNew(a.Templates, "snippet.html"),
	}, a.logger)
}

// newSnippetHandler presents the creation form and handles its submission.
func (a *App) newSnippetHandler() (http.HandlerFunc, error) {
	form, err := NewSnippetForm(a.Repo)
	if err != nil {
		return nil, err
	}

	create := func(ctx context.Context, data, _ map[string]any, actor any) (any, error) {
		owner, ok := actor.(User)
		if !ok {
			return nil, model.NewForbiddenError("only registered users can create snippets")
		}

		observability.RequestLogger(ctx, a.logger).Debug("snippet submitted",
			zap.Any("data", observability.RedactBody(data, nil)))

		s, err := a.Repo.CreateSnippet(ctx, Snippet{
			Slug:      data["slug"].(string),
			OwnerID:   owner.ID,
			Title:     data["title"].(string),
			Body:      data["body"].(string),
			Published: data["published"] == "true",
		})
		if err != nil {
			return nil, err
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = render.JSONOrRedirect(w, r, s, "/snippets/"+s.Slug)
		}), nil
	}

	return web.NewHandler(web.Endpoint{
		Require:  []permit.Check{{Subject: permit.ActorName, Permission: "post"}},
		Registry: a.Registry,
		Forms: dispatch.MustSingle(dispatch.FormSpec{
			Validator:  form,
			Handler:    create,
			NeedsActor: true,
		}),
		Handler: func(_ context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			return map[string]any{"Form": resolved[dispatch.InvalidFormArg]}, nil
		},
		Renderer: render.MustNew(a.Templates, "editor.html"),
	}, a.logger)
}

// editSnippetHandler serves the edit page and dispatches its two actions.
func (a *App) editSnippetHandler() (http.HandlerFunc, error) {
	updateForm, err := NewSnippetUpdateForm()
	if err != nil {
		return nil, err
	}

	update := func(ctx context.Context, data, resolved map[string]any, _ any) (any, error) {
		s := resolved["slug"].(Snippet)
		s.Slug = data["slug"].(string)
		s.Title = data["title"].(string)
		s.Body = data["body"].(string)
		s.Published = data["published"] == "true"

		if err := a.Repo.UpdateSnippet(ctx, s); err != nil {
			return nil, err
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = render.JSONOrRedirect(w, r, s, "/snippets/"+s.Slug)
		}), nil
	}

	remove := func(ctx context.Context, _, resolved map[string]any, _ any) (any, error) {
		s := resolved["slug"].(Snippet)
		if err := a.Repo.DeleteSnippet(ctx, s.ID); err != nil {
			return nil, err
		}
		return render.Redirect("/", http.StatusSeeOther), nil
	}

	return web.NewHandler(web.Endpoint{
		Resolve: resolve.MustSpec(resolve.Arg{
			Name:      "slug",
			Validator: lookup.MustEntity(KindSnippet, a.Repo, lookup.Raw("slug")),
		}),
		Require:  []permit.Check{{Subject: "slug", Permission: "edit"}},
		Registry: a.Registry,
		Forms: dispatch.MustRegistry("action", map[string]dispatch.FormSpec{
			"update": {Validator: updateForm, Handler: update},
			"delete": {Validator: emptyForm(), Handler: remove},
		}),
		Handler: func(_ context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			return map[string]any{
				"Snippet": resolved["slug"],
				"Form":    resolved[dispatch.InvalidFormArg],
				"Action":  "update",
			}, nil
		},
		Renderer: render.MustNew(a.Templates, "editor.html"),
	}, a.logger)
}

// profileHandler serves a user's public profile.
func (a *App) profileHandler() (http.HandlerFunc, error) {
	return web.NewHandler(web.Endpoint{
		Resolve: resolve.MustSpec(resolve.Arg{
			Name:      "username",
			Validator: lookup.MustEntity(KindUser, a.Repo, lookup.Raw("username")),
		}),
		Handler: func(_ context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			return map[string]any{"Profile": resolved["username"]}, nil
		},
		Renderer: render.MustNew(a.Templates, "profile.html"),
	}, a.logger)
}

// feedbackHandler accepts schema-validated feedback and answers with JSON.
func (a *App) feedbackHandler() (http.HandlerFunc, error) {
	form, err := NewFeedbackForm()
	if err != nil {
		return nil, err
	}

	accept := func(ctx context.Context, data, _ map[string]any, _ any) (any, error) {
		observability.RequestLogger(ctx, a.logger).Info("feedback received",
			zap.Any("rating", data["rating"]))
		return map[string]any{"accepted": true}, nil
	}

	return web.NewHandler(web.Endpoint{
		Forms: dispatch.MustSingle(dispatch.FormSpec{Validator: form, Handler: accept}),
		Handler: func(_ context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			if binding := resolved[dispatch.InvalidFormArg]; binding != nil {
				b := binding.(*validate.Binding)
				return nil, model.NewValidationEnvelope(b.Errors)
			}
			return map[string]any{"accepted": false}, nil
		},
	}, a.logger)
}

// emptyForm accepts any body; used for actions that carry no fields.
func emptyForm() validate.FormValidator {
	return validate.MustFields(nil)
}
