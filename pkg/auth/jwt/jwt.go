// Package jwt provides a bearer-token resolver that validates
// HMAC-signed JWTs against a shared secret.
//
// Verification failures are deliberately indistinguishable to the
// caller: a bad signature, an expired token, a malformed token, and a
// token missing its tenant claim all produce the same unauthenticated
// rejection. The specific cause is only logged at debug level.
package jwt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/vantagecrm/gatekeeper/pkg/auth"
)

// Config holds the JWT resolver configuration.
type Config struct {
	// Secret is the HMAC signing secret (required).
	Secret []byte

	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty, audience is not validated.
	Audience string

	// UserClaim is the JWT claim used as the caller's user id. Default: "sub".
	UserClaim string

	// TenantClaim is the JWT claim carrying the tenant id. Default: "tenantId".
	TenantClaim string

	// RoleClaim is the JWT claim carrying the tenant role. Default: "role".
	RoleClaim string
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenantId"
	}
	if c.RoleClaim == "" {
		c.RoleClaim = "role"
	}
}

// Resolver validates HMAC-signed bearer tokens.
type Resolver struct {
	config Config
}

// New creates a JWT resolver with the given configuration.
func New(cfg Config) (*Resolver, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("jwt: secret is required")
	}
	cfg.applyDefaults()
	return &Resolver{config: cfg}, nil
}

// Resolve extracts a bearer token from the Authorization header value,
// validates it, and returns an authenticated context on success.
//
// Decision outcomes:
//   - Abstain: no Authorization value or not a Bearer scheme
//   - No: bearer token present but invalid (expired, bad signature,
//     malformed, or missing the tenant claim)
//   - Yes: valid JWT with populated Context
func (r *Resolver) Resolve(_ context.Context, authorization string) auth.Result {
	if authorization == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	// Must be Bearer token.
	if !strings.HasPrefix(authorization, "Bearer ") {
		return auth.Result{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimPrefix(authorization, "Bearer ")
	if tokenStr == "" {
		return r.reject("empty bearer token")
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		// Ensure the signing method is HMAC.
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.config.Secret, nil
	}, r.parserOptions()...)
	if err != nil {
		return r.reject(fmt.Sprintf("token validation failed: %v", err))
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return r.reject("invalid token claims")
	}

	userID := claimString(claims, r.config.UserClaim)
	if userID == "" {
		return r.reject(fmt.Sprintf("token missing %q claim", r.config.UserClaim))
	}

	superAdmin := claimBool(claims, "superAdmin")

	// A token without a tenant cannot be used for tenant-scoped
	// operations, even with a valid signature.
	tenantID := claimString(claims, r.config.TenantClaim)
	if tenantID == "" && !superAdmin {
		return r.reject(fmt.Sprintf("token missing %q claim", r.config.TenantClaim))
	}

	return auth.Result{
		Decision: auth.Yes,
		Context: &auth.Context{
			UserID:     userID,
			TenantID:   tenantID,
			Email:      claimString(claims, "email"),
			Role:       auth.ParseRole(claimString(claims, r.config.RoleClaim)),
			SuperAdmin: superAdmin,
		},
	}
}

// reject logs the rejection cause at debug level and returns a uniform
// unauthenticated result.
func (r *Resolver) reject(reason string) auth.Result {
	slog.Debug("JWT rejected", "reason", reason)
	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

// Issue signs a token for the given caller context with the given
// lifetime. Used by the platform's login flow and by tests.
func (r *Resolver) Issue(ac *auth.Context, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		r.config.UserClaim: ac.UserID,
		"email":            ac.Email,
		"iat":              now.Unix(),
		"exp":              now.Add(ttl).Unix(),
	}
	if ac.TenantID != "" {
		claims[r.config.TenantClaim] = ac.TenantID
	}
	if ac.Role != "" {
		claims[r.config.RoleClaim] = string(ac.Role)
	}
	if ac.SuperAdmin {
		claims["superAdmin"] = true
	}
	if r.config.Issuer != "" {
		claims["iss"] = r.config.Issuer
	}
	if r.config.Audience != "" {
		claims["aud"] = r.config.Audience
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(r.config.Secret)
}

// parserOptions builds JWT parser options based on the configuration.
func (r *Resolver) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithExpirationRequired(),
	}

	if r.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(r.config.Issuer))
	}

	if r.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(r.config.Audience))
	}

	return opts
}

// claimString extracts a string value from JWT claims.
// Returns empty string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}

// claimBool extracts a boolean value from JWT claims.
func claimBool(claims jwtlib.MapClaims, key string) bool {
	val, ok := claims[key]
	if !ok {
		return false
	}
	b, ok := val.(bool)
	if !ok {
		return false
	}
	return b
}
