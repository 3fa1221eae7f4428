package main

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/corebridge/agentcore/pkg/registry"
)

// newServiceCredentialMinter returns a capability.CredentialMinter
// that signs a short-lived HS256 token asserting the caller's
// identity, tenant and roles to the capability server, keyed by
// secret. secret == "" disables minting: capability clients
// connect without a bearer credential, matching development mode.
func newServiceCredentialMinter(secret string) func(desc registry.CapabilityDescriptor, callerID, tenantID string, roles []string) (string, error) {
	if secret == "" {
		return nil
	}
	key, err := jwk.FromRaw([]byte(secret))
	if err != nil {
		return nil
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.HS256); err != nil {
		return nil
	}

	return func(desc registry.CapabilityDescriptor, callerID, tenantID string, roles []string) (string, error) {
		tok := jwt.New()
		if err := tok.Set(jwt.SubjectKey, callerID); err != nil {
			return "", fmt.Errorf("credentials: set subject: %w", err)
		}
		if err := tok.Set(jwt.AudienceKey, desc.Name); err != nil {
			return "", fmt.Errorf("credentials: set audience: %w", err)
		}
		if err := tok.Set("tenant_id", tenantID); err != nil {
			return "", fmt.Errorf("credentials: set tenant_id: %w", err)
		}
		if err := tok.Set("roles", roles); err != nil {
			return "", fmt.Errorf("credentials: set roles: %w", err)
		}
		if err := tok.Set(jwt.IssuedAtKey, time.Now()); err != nil {
			return "", fmt.Errorf("credentials: set iat: %w", err)
		}
		if err := tok.Set(jwt.ExpirationKey, time.Now().Add(2*time.Minute)); err != nil {
			return "", fmt.Errorf("credentials: set exp: %w", err)
		}

		signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
		if err != nil {
			return "", fmt.Errorf("credentials: sign: %w", err)
		}
		return string(signed), nil
	}
}
