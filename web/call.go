package web

import (
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/afroisalreadyinu/drapes/model"
)

// maxFormMemory bounds in-memory multipart form parsing.
const maxFormMemory = 1 << 20

// BuildCall constructs a pipeline call from an HTTP request. Route
// parameters become call arguments; the query string is attached for
// read-type requests only; the parsed body is attached for everything else.
func BuildCall(r *http.Request) (*model.Call, error) {
	call := &model.Call{Method: r.Method, Args: routeArgs(r)}

	if model.IsReadMethod(r.Method) {
		call.Query = r.URL.Query()
		return call, nil
	}

	if err := parseBody(r); err != nil {
		return nil, model.NewBadRequestError("malformed request body")
	}
	call.Form = r.PostForm
	return call, nil
}

func routeArgs(r *http.Request) map[string]any {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return map[string]any{}
	}
	args := make(map[string]any, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		args[key] = rctx.URLParams.Values[i]
	}
	return args
}

func parseBody(r *http.Request) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil && mediaType == "multipart/form-data" {
			return r.ParseMultipartForm(maxFormMemory)
		}
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	if r.PostForm == nil {
		r.PostForm = url.Values{}
	}
	return nil
}
