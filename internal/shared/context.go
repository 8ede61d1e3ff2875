package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user id in context. The id comes
// from the authentication collaborator in front of this service.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the acting user id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
