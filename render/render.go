// Package render turns pipeline results into HTTP responses: template
// rendering for map results, JSON for everything else, with a per-request
// JSON override for clients that ask for it.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/afroisalreadyinu/drapes/model"
)

// Reserved keys in a map result that steer rendering instead of being data.
const (
	// TemplateKey overrides the renderer's default template for one response.
	TemplateKey = "template"
	// JSONTemplate is the template name that means "answer with JSON".
	JSONTemplate = "json"
)

// JSONRequested reports whether the client asked for a JSON response via the
// json query parameter.
func JSONRequested(r *http.Request) bool {
	return r.URL.Query().Get("json") != ""
}

// Renderer renders handler results against a parsed template set.
type Renderer struct {
	templates   *template.Template
	defaultName string
}

// New builds a renderer with a default template name. The default applies to
// map results that carry no template override.
func New(templates *template.Template, defaultName string) (*Renderer, error) {
	if templates == nil {
		return nil, model.Configf("renderer with nil template set")
	}
	if defaultName == "" {
		return nil, model.Configf("renderer with empty default template name")
	}
	if templates.Lookup(defaultName) == nil {
		return nil, model.Configf("renderer default template %q not in set", defaultName)
	}
	return &Renderer{templates: templates, defaultName: defaultName}, nil
}

// MustNew is like New but panics on configuration errors.
func MustNew(templates *template.Template, defaultName string) *Renderer {
	rn, err := New(templates, defaultName)
	if err != nil {
		panic(err)
	}
	return rn
}

// Render writes one handler result.
//
// An http.Handler result serves itself, so handlers can answer with
// redirects or streamed responses. A map result renders through the template
// set, unless the template name resolves to "json" or the client requested
// JSON, in which case the map is serialized. Any other result is serialized
// as JSON.
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, result any) error {
	switch v := result.(type) {
	case http.Handler:
		v.ServeHTTP(w, r)
		return nil
	case map[string]any:
		name := rn.defaultName
		if override, ok := v[TemplateKey].(string); ok && override != "" {
			name = override
			delete(v, TemplateKey)
		}
		if name == JSONTemplate || JSONRequested(r) {
			return writeJSON(w, http.StatusOK, v)
		}
		return rn.renderTemplate(w, name, v)
	default:
		return writeJSON(w, http.StatusOK, result)
	}
}

// renderTemplate buffers the execution so a template error never produces a
// half-written 200.
func (rn *Renderer) renderTemplate(w http.ResponseWriter, name string, data map[string]any) error {
	tpl := rn.templates.Lookup(name)
	if tpl == nil {
		return model.Configf("template %q not in set", name)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render: executing template %q: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}

// JSONOrRedirect answers with JSON when the client requested it and
// redirects otherwise. Useful for form handlers that serve both script and
// browser clients.
func JSONOrRedirect(w http.ResponseWriter, r *http.Request, payload any, location string) error {
	if JSONRequested(r) {
		return writeJSON(w, http.StatusOK, payload)
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
	return nil
}

// Redirect wraps an HTTP redirect as a handler result.
func Redirect(location string, code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, location, code)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}
