// Package auth provides identity resolution and route authorization for
// the gatekeeper pipeline. Resolvers turn a bearer credential into a
// tenant-scoped Context; RoutePolicy decides whether that Context may
// proceed on a given route. Resolvers are composed into a chain with
// three-outcome voting so multiple credential types can coexist.
package auth
