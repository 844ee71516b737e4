// Package auth carries the acting household member through a request.
// Chorely has no login; a device names the member using it and the
// server only checks that the member exists.
package auth

import "context"

type contextKey struct{}

// Identity is the member a request acts for.
type Identity struct {
	MemberID int64
	Name     string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// MemberID returns the acting member, or 0 when the request names none.
func MemberID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.MemberID
}
