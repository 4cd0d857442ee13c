package auth

import (
	"fmt"
	"strings"
)

// RoutePolicy is per-route authorization metadata, declared at route
// registration time and consulted by the pipeline on every request.
type RoutePolicy struct {
	// Public allows anonymous access. The pipeline skips identity
	// resolution entirely for public routes.
	Public bool

	// Roles restricts the route to the listed roles. Empty means any
	// authenticated caller may proceed.
	Roles []Role
}

// Authorize decides whether the resolved caller context may proceed on a
// route with the given policy. Returns nil, ErrUnauthenticated, or an
// error wrapping ErrForbidden that names the required roles and the
// caller's actual role.
func Authorize(ac *Context, policy RoutePolicy) error {
	if policy.Public {
		return nil
	}

	if ac == nil {
		return ErrUnauthenticated
	}

	if len(policy.Roles) == 0 {
		return nil
	}

	caller := Role(strings.ToLower(string(ac.Role)))
	for _, r := range policy.Roles {
		if caller == Role(strings.ToLower(string(r))) {
			return nil
		}
	}

	names := make([]string, len(policy.Roles))
	for i, r := range policy.Roles {
		names[i] = string(r)
	}
	return fmt.Errorf("%w: requires role %s, caller has role %s",
		ErrForbidden, strings.Join(names, " or "), ac.Role)
}
