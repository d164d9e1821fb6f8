// Package identity carries the per-request actor supplied by the surrounding
// web layer. The engine never authenticates anyone itself; it only consumes
// an already-established identity.
package identity

import (
	"context"
	"strings"
)

// Actor identifies who performs a privileged action and from where.
type Actor struct {
	ID        string
	Email     string
	IPAddress string
	UserAgent string
}

// Valid reports whether the actor carries the mandatory fields.
func (a Actor) Valid() bool {
	return strings.TrimSpace(a.ID) != "" && strings.TrimSpace(a.Email) != ""
}

type actorContextKey struct{}

// ContextWithActor attaches the request actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the request actor, if one was attached.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || !actor.Valid() {
		return Actor{}, false
	}
	return actor, true
}
