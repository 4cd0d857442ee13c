// Package pipeline wires identity resolution, route authorization, and
// audit recording around every registered route in a fixed order:
// rate limit, then authentication and role check (skipped entirely for
// public routes), then the business handler, then fire-and-forget audit
// dispatch for mutating methods.
//
// The ordering is enforced by construction: routes are declared in a
// static table consulted when the handler chain is built at startup,
// not via independently registered global interceptors.
package pipeline
