package ratelimit

import "context"

type principalKey struct{}

// WithPrincipal anexa o id do usuário autenticado ao contexto, para a estratégia USER.
func WithPrincipal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, principalKey{}, id)
}

func PrincipalFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalKey{}).(string)
	return id, ok && id != ""
}
