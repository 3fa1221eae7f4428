// Package auth implements C1, the Auth Context Extractor: turning an
// optional opaque token plus a deployment mode into an RBAC Context.
package auth

import (
	"log/slog"

	"github.com/corebridge/agentcore/pkg/config"
	"github.com/corebridge/agentcore/pkg/rbac"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Extractor implements spec.md §4.1.
type Extractor struct {
	mode config.Mode
}

// NewExtractor builds an Extractor for the given deployment mode.
// Mode must be development or production; anything else is a
// configuration error surfaced by Config.Validate before this is
// constructed (spec.md §4.1 "fatal only if mode is unconfigured").
func NewExtractor(mode config.Mode) *Extractor {
	return &Extractor{mode: mode}
}

// devContext is the fixed development-mode identity (spec.md §4.1).
func devContext() rbac.Context {
	return rbac.Context{
		CallerID: "dev",
		TenantID: "dev",
		Roles:    []string{"admin"},
		Admin:    true,
		Scope:    rbac.AccessScope{AllEntities: true, EntityIDs: map[string]struct{}{}},
	}
}

// anonymousContext is returned when a token is missing or unparsable
// in production mode (spec.md §4.1).
func anonymousContext() rbac.Context {
	return rbac.Context{
		CallerID: "anonymous",
		Roles:    []string{"readonly"},
		Admin:    false,
		Scope:    rbac.NewAccessScope(),
	}
}

// Extract builds an RBAC Context from an optional bearer token. It
// never returns an error for a missing/malformed token — that
// degrades to the anonymous context and a warning log, per spec.md
// §4.1's "never throw" contract.
func (e *Extractor) Extract(token string) rbac.Context {
	if e.mode == config.ModeDevelopment {
		return devContext()
	}

	if token == "" {
		slog.Warn("auth: no token provided in production mode, using anonymous context")
		return anonymousContext()
	}

	tok, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		slog.Warn("auth: failed to parse token, using anonymous context", "error", err)
		return anonymousContext()
	}

	return claimsToContext(tok)
}

func claimsToContext(tok jwt.Token) rbac.Context {
	callerID := firstNonEmptyClaim(tok, "email", "upn")
	if callerID == "" {
		callerID = "unknown"
	}

	tenantID, _ := stringClaim(tok, "tid")
	if tenantID == "" {
		tenantID = "unknown"
	}

	objectID, _ := stringClaim(tok, "oid")

	roles := rolesClaim(tok)

	admin := false
	for _, r := range roles {
		if r == "admin" {
			admin = true
			break
		}
	}

	return rbac.Context{
		CallerID: callerID,
		TenantID: tenantID,
		ObjectID: objectID,
		Roles:    roles,
		Admin:    admin,
		Scope:    rbac.NewAccessScope(),
	}
}

func firstNonEmptyClaim(tok jwt.Token, keys ...string) string {
	for _, k := range keys {
		if v, ok := stringClaim(tok, k); ok && v != "" {
			return v
		}
	}
	return ""
}

func stringClaim(tok jwt.Token, key string) (string, bool) {
	v, ok := tok.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// rolesClaim extracts the "roles" claim, which may be a single string
// or a list of strings (spec.md §4.1).
func rolesClaim(tok jwt.Token) []string {
	v, ok := tok.Get("roles")
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	default:
		return nil
	}
}
