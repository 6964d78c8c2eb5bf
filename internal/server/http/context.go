package httpserver

import (
	"context"

	"github.com/and161185/tenant-notes/internal/model"
)

type ctxKey string

const identityKey ctxKey = "tn.identity"

// WithIdentity stores the authenticated caller in context.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx fetches the authenticated caller from context.
func IdentityFromCtx(ctx context.Context) (model.Identity, bool) {
	v := ctx.Value(identityKey)
	if v == nil {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}

const logSlotKey ctxKey = "tn.logslot"

// logSlot lets RequireAuth report the caller back to RequestLogger, which
// only sees the outer request.
type logSlot struct {
	user string
}

func withLogSlot(ctx context.Context) (context.Context, *logSlot) {
	s := &logSlot{}
	return context.WithValue(ctx, logSlotKey, s), s
}

func noteCaller(ctx context.Context, id model.Identity) {
	if s, ok := ctx.Value(logSlotKey).(*logSlot); ok {
		s.user = id.UserID.String()
	}
}
