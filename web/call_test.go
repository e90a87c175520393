package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afroisalreadyinu/drapes/model"
)

func callVia(t *testing.T, pattern string, req *http.Request) *model.Call {
	t.Helper()

	var call *model.Call
	router := chi.NewRouter()
	router.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := BuildCall(r)
		require.NoError(t, err)
		call = c
	}))
	router.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, call)
	return call
}

func TestBuildCallReadRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/snippets/go-tips?json=1", nil)
	call := callVia(t, "/snippets/{slug}", req)

	assert.Equal(t, map[string]any{"slug": "go-tips"}, call.Args)
	assert.Equal(t, "1", call.Query.Get("json"))
	assert.False(t, call.HasBody())

	v, ok := call.QueryValue("json")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestBuildCallWriteRequest(t *testing.T) {
	form := url.Values{"title": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/snippets/go-tips?ignored=1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	call := callVia(t, "/snippets/{slug}", req)

	assert.True(t, call.HasBody())
	assert.Equal(t, "hello", call.Form.Get("title"))

	// Query parameters never overlay write requests.
	_, ok := call.QueryValue("ignored")
	assert.False(t, ok)
}

func TestBuildCallEmptyWriteBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/snippets", nil)
	call := callVia(t, "/snippets", req)

	// An empty body still dispatches: the form registry answers, not a 500.
	assert.True(t, call.HasBody())
	assert.Empty(t, call.Form)
}

func TestBuildCallMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/snippets", strings.NewReader("%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := BuildCall(req)
	require.Error(t, err)

	w := httptest.NewRecorder()
	WriteError(w, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
