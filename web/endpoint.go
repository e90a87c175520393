package web

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/afroisalreadyinu/drapes/dispatch"
	"github.com/afroisalreadyinu/drapes/model"
	"github.com/afroisalreadyinu/drapes/permit"
	"github.com/afroisalreadyinu/drapes/render"
	"github.com/afroisalreadyinu/drapes/resolve"
)

// Handler is an endpoint's default handler: it receives the call and the
// resolved arguments and returns the response value.
type Handler func(ctx context.Context, call *model.Call, resolved map[string]any) (any, error)

// Endpoint declares one route's pipeline: argument resolution, permission
// requirements, form dispatch, the default handler, and how results render.
// All fields except Handler are optional.
type Endpoint struct {
	// Resolve converts raw call input into validated arguments.
	Resolve *resolve.Spec
	// Require lists the permission checks to run after resolution.
	Require []permit.Check
	// Registry evaluates the Require checks. Required when Require is set.
	Registry *permit.Registry
	// Forms routes submitted bodies. A rejected submission re-runs Handler
	// with the failed binding under dispatch.InvalidFormArg.
	Forms *dispatch.Registry
	// Handler produces the response when no form handler was delegated to.
	Handler Handler
	// Renderer renders successful results. When nil, results are written as
	// JSON.
	Renderer *render.Renderer
}

// NewHandler composes the endpoint into an http.HandlerFunc. Declaration
// mistakes surface here, at startup, not on the first request.
func NewHandler(ep Endpoint, logger *zap.Logger) (http.HandlerFunc, error) {
	if ep.Handler == nil {
		return nil, model.Configf("endpoint with no handler")
	}
	if len(ep.Require) > 0 && ep.Registry == nil {
		return nil, model.Configf("endpoint requires permissions but has no registry")
	}
	if ep.Forms != nil && ep.Resolve != nil {
		// The dispatcher injects these names; a declared argument would be
		// silently shadowed.
		for _, reserved := range []string{dispatch.FormArg, dispatch.InvalidFormArg} {
			if ep.Resolve.Declares(reserved) {
				return nil, model.Configf("argument name %q is reserved for form dispatch", reserved)
			}
		}
	}

	var gate *permit.Gate
	if len(ep.Require) > 0 {
		g, err := permit.NewGate(ep.Registry, ep.Require...)
		if err != nil {
			return nil, err
		}
		gate = g
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		call, err := BuildCall(r)
		if err != nil {
			WriteError(w, err)
			return
		}

		if ep.Forms != nil {
			// Route parameters are only known at request time, so the
			// reserved-name check repeats here for pass-through arguments.
			for _, reserved := range []string{dispatch.FormArg, dispatch.InvalidFormArg} {
				if _, ok := call.Arg(reserved); ok {
					writeFailure(w, logger, model.Configf("route parameter %q is reserved for form dispatch", reserved))
					return
				}
			}
		}

		var resolved map[string]any
		if ep.Resolve != nil {
			resolved, err = ep.Resolve.Resolve(ctx, call)
			if err != nil {
				writeFailure(w, logger, err)
				return
			}
		} else {
			// The call is immutable; downstream stages get their own copy
			// of the arguments.
			resolved = make(map[string]any, len(call.Args)+1)
			for name, value := range call.Args {
				resolved[name] = value
			}
		}

		actor := model.ActorFrom(ctx)
		if gate != nil {
			if err := gate.Check(resolved, actor); err != nil {
				writeFailure(w, logger, err)
				return
			}
		}

		value, err := runHandlers(ctx, ep, call, resolved, actor)
		if err != nil {
			writeFailure(w, logger, err)
			return
		}

		if value == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if ep.Renderer != nil {
			if err := ep.Renderer.Render(w, r, value); err != nil {
				logger.Error("render failed", zap.Error(err))
			}
			return
		}
		WriteJSON(w, http.StatusOK, value)
	}, nil
}

// MustHandler is like NewHandler but panics on configuration errors.
func MustHandler(ep Endpoint, logger *zap.Logger) http.HandlerFunc {
	h, err := NewHandler(ep, logger)
	if err != nil {
		panic(err)
	}
	return h
}

func runHandlers(ctx context.Context, ep Endpoint, call *model.Call, resolved map[string]any, actor any) (any, error) {
	if ep.Forms == nil {
		return ep.Handler(ctx, call, resolved)
	}

	result, err := ep.Forms.Dispatch(ctx, call, resolved, actor)
	if err != nil {
		return nil, err
	}
	switch result.Outcome {
	case dispatch.Delegated:
		return result.Value, nil
	case dispatch.Rejected:
		resolved[dispatch.InvalidFormArg] = result.Invalid
		return ep.Handler(ctx, call, resolved)
	default:
		return ep.Handler(ctx, call, resolved)
	}
}

// writeFailure writes a pipeline error. Configuration and unexpected errors
// are logged before being masked behind a generic 500 envelope.
func writeFailure(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		ve *model.ValidationError
		pd *model.PermissionDenied
		ee *model.ErrorEnvelope
	)
	if !errors.As(err, &ve) && !errors.As(err, &pd) && !errors.As(err, &ee) {
		logger.Error("pipeline failure", zap.Error(err))
	}
	WriteError(w, err)
}
