// Package ownership builds row-level visibility predicates from a
// caller's authenticated context and a resource's ownership field
// configuration. The predicate is pure data: collaborator services
// evaluate it in memory with Matches, render it to SQL with ToSQL, or
// combine it with their own search filters via Merge.
//
// Tenant isolation is checked first and cannot be overridden by
// ownership field values. The record-level check CanAccessRecord is
// guaranteed to agree with the predicate for every input; one is used
// for listing, the other for single-record fetch authorization.
package ownership
