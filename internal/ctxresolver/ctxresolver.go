package ctxresolver

import (
	"context"
	"fmt"
	"net/http"
)

// Channel is the resolved identity of a channel, however it was looked up.
type Channel struct {
	ID          string
	Title       string
	Description string
}

// Resolver turns a user-supplied URL or ID into a canonical channel.
type Resolver interface {
	ResolveChannel(ctx context.Context, urlOrID string) (*Channel, error)
}

// context registration

var resolverKey int

func WithResolver(ctx context.Context, res Resolver) context.Context {
	return context.WithValue(ctx, &resolverKey, res)
}

func GetResolver(ctx context.Context) Resolver {
	if v := ctx.Value(&resolverKey); v != nil {
		return v.(Resolver)
	}

	return nil
}

// middleware

func Register(res Resolver) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithResolver(r.Context(), res)))
	}
}

// main interface

var (
	ErrNoResolver = fmt.Errorf("no resolver found in context")
)

func ResolveChannel(ctx context.Context, urlOrID string) (*Channel, error) {
	res := GetResolver(ctx)
	if res == nil {
		return nil, ErrNoResolver
	}

	ch, err := res.ResolveChannel(ctx, urlOrID)
	if err != nil {
		return nil, fmt.Errorf("ctxresolver.ResolveChannel: %w", err)
	}

	return ch, nil
}
