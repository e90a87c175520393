package web

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/afroisalreadyinu/drapes/dispatch"
	"github.com/afroisalreadyinu/drapes/lookup"
	"github.com/afroisalreadyinu/drapes/model"
	"github.com/afroisalreadyinu/drapes/permit"
	"github.com/afroisalreadyinu/drapes/render"
	"github.com/afroisalreadyinu/drapes/resolve"
	"github.com/afroisalreadyinu/drapes/validate"
)

type member struct {
	Name  string
	Admin bool
}

func (m member) Kind() string     { return "member" }
func (m member) IdentityKey() any { return m.Name }

type page struct {
	Slug  string
	Owner string
	Body  string
}

func (p page) Kind() string { return "page" }

func pageField(item any, field string) (any, bool) {
	p := item.(page)
	switch field {
	case "slug":
		return p.Slug, true
	case "owner":
		return p.Owner, true
	}
	return nil, false
}

type testApp struct {
	finder   *lookup.Memory
	registry *permit.Registry
	logger   *zap.Logger
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	finder := lookup.NewMemory()
	finder.Register("page", pageField)
	finder.Add("page", page{Slug: "intro", Owner: "alice", Body: "hi"})

	registry := permit.NewRegistry()
	registry.MustRegister("page", permit.Rules{
		Grants: map[string]func(any, any) bool{
			"edit": permit.Grant(func(p page, actor any) bool {
				m, ok := actor.(member)
				return ok && (m.Admin || m.Name == p.Owner)
			}),
		},
	})
	registry.MustRegister("member", permit.Rules{
		Attributes: map[string]func(any) bool{
			"admin": permit.Attr(func(m member) bool { return m.Admin }),
		},
	})
	registry.Freeze()

	return &testApp{finder: finder, registry: registry, logger: zap.NewNop()}
}

func asActor(actor any, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(model.WithActor(r.Context(), actor)))
	})
}

func serve(t *testing.T, h http.HandlerFunc, actor any, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Handle("/pages/{slug}", asActor(actor, h))
	router.Handle("/pages", asActor(actor, h))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEndpointResolvesAndRenders(t *testing.T) {
	app := newTestApp(t)
	templates := template.Must(template.New("page").Parse("{{.Page.Body}} by {{.Page.Owner}}"))

	h, err := NewHandler(Endpoint{
		Resolve: resolve.MustSpec(resolve.Arg{
			Name:      "slug",
			Validator: lookup.MustEntity("page", app.finder, lookup.Raw("slug")),
		}),
		Handler: func(_ context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			return map[string]any{"Page": resolved["slug"]}, nil
		},
		Renderer: render.MustNew(templates, "page"),
	}, app.logger)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/pages/intro", nil)
	w := serve(t, h, nil, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi by alice", w.Body.String())
}

func TestEndpointUnknownEntityIs422(t *testing.T) {
	app := newTestApp(t)

	h, err := NewHandler(Endpoint{
		Resolve: resolve.MustSpec(resolve.Arg{
			Name:      "slug",
			Validator: lookup.MustEntity("page", app.finder, lookup.Raw("slug")),
		}),
		Handler: func(_ context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			return resolved["slug"], nil
		},
	}, app.logger)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/pages/nope", nil)
	w := serve(t, h, nil, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, model.ErrValidationError, body.Error.Code)
}

func TestEndpointPermissionDenied(t *testing.T) {
	app := newTestApp(t)

	h, err := NewHandler(Endpoint{
		Resolve: resolve.MustSpec(resolve.Arg{
			Name:      "slug",
			Validator: lookup.MustEntity("page", app.finder, lookup.Raw("slug")),
		}),
		Require:  []permit.Check{{Subject: "slug", Permission: "edit"}},
		Registry: app.registry,
		Handler: func(_ context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			return map[string]any{"ok": true}, nil
		},
	}, app.logger)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/pages/intro", nil)

	w := serve(t, h, member{Name: "bob"}, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "slug is not allowed to edit")

	w = serve(t, h, member{Name: "alice"}, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEndpointAnonymousActorIsDenied(t *testing.T) {
	app := newTestApp(t)

	h, err := NewHandler(Endpoint{
		Require:  []permit.Check{{Subject: permit.ActorName, Permission: "admin"}},
		Registry: app.registry,
		Handler: func(_ context.Context, _ *model.Call, _ map[string]any) (any, error) {
			return map[string]any{"ok": true}, nil
		},
	}, app.logger)
	require.NoError(t, err)

	// No actor middleware: the pipeline sees the anonymous sentinel, which
	// is denied rather than treated as a misconfiguration.
	router := chi.NewRouter()
	router.Handle("/pages", h)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pages", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEndpointFormRoundTrip(t *testing.T) {
	app := newTestApp(t)
	templates := template.Must(template.New("editor").Parse(
		`{{with .Form}}errors:{{len .Errors}}{{else}}blank{{end}}`))

	forms := dispatch.MustSingle(dispatch.FormSpec{
		Validator: validate.MustFields([]validate.Field{
			{Name: "body", Validator: validate.NonEmpty(), Required: true},
		}),
		Handler: func(_ context.Context, data, _ map[string]any, _ any) (any, error) {
			return map[string]any{"saved": data["body"], render.TemplateKey: render.JSONTemplate}, nil
		},
	})

	h, err := NewHandler(Endpoint{
		Forms: forms,
		Handler: func(_ context.Context, _ *model.Call, resolved map[string]any) (any, error) {
			return map[string]any{"Form": resolved[dispatch.InvalidFormArg]}, nil
		},
		Renderer: render.MustNew(templates, "editor"),
	}, app.logger)
	require.NoError(t, err)

	// GET passes through to the default handler with no binding.
	w := serve(t, h, nil, httptest.NewRequest(http.MethodGet, "/pages", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "blank", w.Body.String())

	// An invalid submission re-renders with the failed binding.
	req := httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(url.Values{}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = serve(t, h, nil, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "errors:1", w.Body.String())

	// A valid submission is delegated to the form handler.
	form := url.Values{"body": {"hello"}}
	req = httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = serve(t, h, nil, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"saved":"hello"`)
}

func TestEndpointRejectedFormLeavesCallUntouched(t *testing.T) {
	app := newTestApp(t)

	forms := dispatch.MustSingle(dispatch.FormSpec{
		Validator: validate.MustFields([]validate.Field{
			{Name: "body", Validator: validate.NonEmpty(), Required: true},
		}),
		Handler: func(_ context.Context, data, _ map[string]any, _ any) (any, error) {
			return data, nil
		},
	})

	var seen *model.Call
	h, err := NewHandler(Endpoint{
		Forms: forms,
		Handler: func(_ context.Context, call *model.Call, resolved map[string]any) (any, error) {
			seen = call
			return map[string]any{"rejected": resolved[dispatch.InvalidFormArg] != nil}, nil
		},
	}, app.logger)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/pages/intro", strings.NewReader(url.Values{}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(t, h, nil, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rejected":true`)
	require.NotNil(t, seen)
	_, ok := seen.Args[dispatch.InvalidFormArg]
	assert.False(t, ok, "the failed binding leaked into the call arguments")
}

func TestEndpointReservedRouteParam(t *testing.T) {
	app := newTestApp(t)

	forms := dispatch.MustSingle(dispatch.FormSpec{
		Validator: validate.MustFields(nil),
		Handler:   func(context.Context, map[string]any, map[string]any, any) (any, error) { return nil, nil },
	})
	h, err := NewHandler(Endpoint{
		Forms: forms,
		Handler: func(context.Context, *model.Call, map[string]any) (any, error) {
			return map[string]any{"ok": true}, nil
		},
	}, app.logger)
	require.NoError(t, err)

	// A route parameter named after a dispatch injection point would be
	// silently shadowed; it is rejected as a misconfiguration instead.
	router := chi.NewRouter()
	router.Handle("/pages/{invalid_form}", h)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pages/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), model.ErrInternalError)
}

func TestNewHandlerConfigErrors(t *testing.T) {
	app := newTestApp(t)

	_, err := NewHandler(Endpoint{}, app.logger)
	assert.Error(t, err, "no handler")

	_, err = NewHandler(Endpoint{
		Require: []permit.Check{{Subject: "x", Permission: "y"}},
		Handler: func(context.Context, *model.Call, map[string]any) (any, error) { return nil, nil },
	}, app.logger)
	assert.Error(t, err, "require without registry")

	forms := dispatch.MustSingle(dispatch.FormSpec{
		Validator: validate.MustFields(nil),
		Handler:   func(context.Context, map[string]any, map[string]any, any) (any, error) { return nil, nil },
	})
	_, err = NewHandler(Endpoint{
		Forms:   forms,
		Resolve: resolve.MustSpec(resolve.Arg{Name: dispatch.InvalidFormArg, Validator: validate.NonEmpty()}),
		Handler: func(context.Context, *model.Call, map[string]any) (any, error) { return nil, nil },
	}, app.logger)
	assert.Error(t, err, "reserved argument name")
}
