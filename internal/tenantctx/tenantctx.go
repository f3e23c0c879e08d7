// Package tenantctx carries the current tenant (caller identity and the
// tenant an operation is acting on) as explicit context values. Because the
// binding lives on a context.Context, the caller's previous binding is
// restored automatically on every exit path.
package tenantctx

import "context"

// Info binds a tenant domain and id together for the duration of a call.
type Info struct {
	ID     int64
	Domain string
}

type callerKey struct{}
type currentKey struct{}

// WithCaller returns a context carrying the identity of the requesting
// tenant. The API layer sets this from the authenticated request.
func WithCaller(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, callerKey{}, info)
}

// Caller returns the requesting tenant, if any.
func Caller(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(callerKey{}).(Info)
	return info, ok
}

// WithCurrent returns a context scoped to the tenant being operated on, so
// nested collaborator calls act against the correct tenant's resources.
func WithCurrent(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, currentKey{}, info)
}

// Current returns the tenant the operation is acting on, if any.
func Current(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(currentKey{}).(Info)
	return info, ok
}
