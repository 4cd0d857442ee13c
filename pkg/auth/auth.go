package auth

import (
	"context"
	"errors"
	"strings"
)

// Role is a declared tenant role. Roles are compared case-insensitively
// and only by explicit membership; there is no implicit hierarchy.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	// RoleManager is accepted as a role value but currently behaves
	// identically to RoleMember for ownership filtering. Team-visibility
	// semantics for managers are not implemented.
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

// ParseRole normalizes a role string. Unknown or empty values default
// to RoleMember.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	case RoleViewer:
		return RoleViewer
	default:
		return RoleMember
	}
}

// Privileged reports whether the role grants tenant-wide row visibility.
func (r Role) Privileged() bool {
	n := Role(strings.ToLower(string(r)))
	return n == RoleOwner || n == RoleAdmin
}

// Context represents an authenticated caller. It is created once per
// request by a resolver and is read-only downstream.
type Context struct {
	// UserID is the unique caller identifier (required, non-empty).
	UserID string

	// TenantID scopes every data access. Never empty for a
	// non-super-admin context.
	TenantID string

	// Email is the caller's email address, if the credential carries one.
	Email string

	// Role is the caller's tenant role. Defaults to RoleMember when the
	// credential does not declare one.
	Role Role

	// SuperAdmin marks platform operators who are not bound to a tenant.
	SuperAdmin bool
}

// Decision represents the three possible outcomes of identity resolution.
type Decision int

const (
	// Yes means the credential is valid. The chain stops and the
	// resolved Context is used.
	Yes Decision = iota

	// No means a credential of this resolver's type is present but
	// invalid. The chain stops and the request is rejected.
	No

	// Abstain means this resolver cannot handle the credential type.
	// The chain continues to the next resolver.
	Abstain
)

// Result carries the outcome of a resolution attempt.
type Result struct {
	Decision Decision
	Context  *Context // populated only when Decision == Yes
	Err      error    // populated only when Decision == No
}

// Resolver examines a raw Authorization header value and returns a
// three-outcome vote. Resolvers must be side-effect-free and idempotent.
type Resolver interface {
	Resolve(ctx context.Context, authorization string) Result
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain evaluates resolvers in order using three-outcome voting.
// If all resolvers abstain (no credential, or no resolver recognizes it),
// the request is unauthenticated.
type Chain struct {
	// Resolvers are evaluated left to right.
	Resolvers []Resolver
}

// Resolve runs the chain. Stops on the first Yes or No.
func (c *Chain) Resolve(ctx context.Context, authorization string) Result {
	for _, r := range c.Resolvers {
		result := r.Resolve(ctx, authorization)
		if result.Decision != Abstain {
			return result
		}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}
