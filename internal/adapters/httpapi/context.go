package httpapi

import (
	"context"

	"github.com/pactsquad/pact-api/internal/domain"
)

type sessionKey struct{}

func WithSession(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	v, ok := ctx.Value(sessionKey{}).(domain.Session)
	return v, ok && v.UserID != ""
}
