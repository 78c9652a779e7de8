// Package authz is the capability check invoked by the HTTP boundary before
// administrative operations. Role resolution itself lives outside this
// application; the core never embeds authorization in its control flow.
package authz

import "context"

const RoleAdmin = "admin"

// Authorizer reports whether a user may perform an action on a resource.
type Authorizer interface {
	Authorize(ctx context.Context, userID, action, resource string) bool
}

type roleKey struct{}

// WithRole stores the caller's role (as resolved by the upstream gateway) in
// the request context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey{}).(string); ok {
		return v
	}
	return ""
}

// GatewayRoles trusts the role the upstream gateway resolved for the caller.
// Every gated action in this application is admin-only.
type GatewayRoles struct{}

func (GatewayRoles) Authorize(ctx context.Context, _, _, _ string) bool {
	return RoleFromContext(ctx) == RoleAdmin
}

// AllowAll grants everything; for tests and local development.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, string, string) bool { return true }
