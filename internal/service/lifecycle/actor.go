package lifecycle

import (
	"context"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

type actorKey struct{}

// WithActor attaches the requesting actor to the context for the audit trail.
func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor.Clone())
}

// ActorFromContext returns the actor attached by WithActor, or nil.
func ActorFromContext(ctx context.Context) *domain.Actor {
	actor, _ := ctx.Value(actorKey{}).(*domain.Actor)

	return actor
}
