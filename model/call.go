package model

import "net/url"

// Call is the per-invocation view of an incoming request: the HTTP method,
// the route/keyword arguments the handler was invoked with, the query-string
// parameters, and the parsed body values. It is immutable per invocation.
type Call struct {
	Method string
	Args   map[string]any
	Query  url.Values
	Form   url.Values
}

// IsReadMethod reports whether the method carries no body (a read-type
// request). Query-parameter overlay during argument resolution and the
// pass-through branch of form dispatch both key off this.
func IsReadMethod(method string) bool {
	switch method {
	case "GET", "HEAD", "OPTIONS", "TRACE":
		return true
	}
	return false
}

// IsRead reports whether the call uses a read-type method.
func (c *Call) IsRead() bool { return IsReadMethod(c.Method) }

// HasBody reports whether the call carries body values to dispatch on.
func (c *Call) HasBody() bool { return !c.IsRead() && c.Form != nil }

// Arg returns the named call argument, if present.
func (c *Call) Arg(name string) (any, bool) {
	v, ok := c.Args[name]
	return v, ok
}

// QueryValue returns the first query-string value for name, if present.
func (c *Call) QueryValue(name string) (string, bool) {
	if c.Query == nil {
		return "", false
	}
	vs, ok := c.Query[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
