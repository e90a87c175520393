package model

import "context"

type actorKey struct{}

// WithActor attaches the acting subject to the given context.
func WithActor(ctx context.Context, actor any) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the acting subject from the context. It returns
// Anonymous{} if no subject is present, so callers can always run permission
// checks against a well-defined subject.
func ActorFrom(ctx context.Context) any {
	if a := ctx.Value(actorKey{}); a != nil {
		return a
	}
	return Anonymous{}
}

// IsAnonymous reports whether the subject is the unauthenticated sentinel.
func IsAnonymous(subject any) bool {
	_, ok := subject.(Anonymous)
	return ok
}
