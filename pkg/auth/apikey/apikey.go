// Package apikey provides a resolver for static service-account keys,
// validated with SHA-256 hashing and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/vantagecrm/gatekeeper/pkg/auth"
)

// KeyEntry maps a key hash to a caller context.
type KeyEntry struct {
	KeyHash [32]byte
	Context auth.Context
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key     string
	Context auth.Context
}

// Resolver validates bearer tokens against a static key store.
type Resolver struct {
	keys []KeyEntry
}

// New creates an API key resolver from a list of raw keys and contexts.
// Keys are hashed immediately; plaintext keys are not stored.
func New(entries []RawKeyEntry) *Resolver {
	r := &Resolver{}
	for _, e := range entries {
		r.keys = append(r.keys, KeyEntry{
			KeyHash: sha256.Sum256([]byte(e.Key)),
			Context: e.Context,
		})
	}
	return r
}

// Resolve extracts the bearer token and validates it against the key store.
// Returns Yes if a key matches, Abstain otherwise so a JWT resolver later
// in the chain can still claim the credential.
func (r *Resolver) Resolve(_ context.Context, authorization string) auth.Result {
	if authorization == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	// Must be Bearer token.
	if !strings.HasPrefix(authorization, "Bearer ") {
		return auth.Result{Decision: auth.Abstain}
	}

	token := strings.TrimPrefix(authorization, "Bearer ")
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))

	for _, entry := range r.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.KeyHash[:]) == 1 {
			// Copy to avoid shared state.
			ac := entry.Context
			return auth.Result{Decision: auth.Yes, Context: &ac}
		}
	}

	return auth.Result{Decision: auth.Abstain}
}
