// Package audit records every mutating operation's actor, action,
// target, and outcome in an append-only store.
//
// Recording is best-effort and side-channel by contract: Record returns
// nothing, catches every store failure, and never delays or fails the
// request that triggered it. Business operations always take precedence
// over their audit trail.
package audit
