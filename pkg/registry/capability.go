package registry

import (
	"sort"

	"github.com/corebridge/agentcore/pkg/config"
)

// CapabilityDescriptor is a capability server's immutable identity
// (spec.md §3 Capability Descriptor). Loaded once at startup, never
// mutated — the zero value after Load is the only value that exists
// for the life of the process.
type CapabilityDescriptor struct {
	Name       string
	URL        string
	Credential string
	Driver     string
	DSN        string
}

// CapabilityRegistry maps roles to the capability servers they may
// reach, and holds the descriptor table (spec.md §4.2, C2).
type CapabilityRegistry struct {
	descriptors map[string]CapabilityDescriptor
	roleMap     map[string][]string
	adminRole   string
}

// NewCapabilityRegistry builds a registry from loaded configuration.
func NewCapabilityRegistry(cfg config.Config) *CapabilityRegistry {
	descriptors := make(map[string]CapabilityDescriptor, len(cfg.Capabilities))
	for name, c := range cfg.Capabilities {
		descriptors[name] = CapabilityDescriptor{
			Name:       name,
			URL:        c.URL,
			Credential: c.CredentialEnv,
			Driver:     c.Driver,
			DSN:        c.DSN,
		}
	}
	roleMap := make(map[string][]string, len(cfg.RolesToCapabilities))
	for role, caps := range cfg.RolesToCapabilities {
		roleMap[role] = append([]string(nil), caps...)
	}
	return &CapabilityRegistry{
		descriptors: descriptors,
		roleMap:     roleMap,
		adminRole:   cfg.AdminBypassRole,
	}
}

// Descriptor returns the capability descriptor for name, if loaded.
func (r *CapabilityRegistry) Descriptor(name string) (CapabilityDescriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// All returns every configured capability descriptor.
func (r *CapabilityRegistry) All() []CapabilityDescriptor {
	out := make([]CapabilityDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Accessible returns the union of capability names permitted across
// roles (spec.md §4.2 `accessible(roles)`). The admin bypass is only
// applied when AdminBypassRole was explicitly configured and present
// among roles — never an implicit check against the literal string
// "admin" (spec.md §4.2 invariant).
func (r *CapabilityRegistry) Accessible(roles []string) map[string]struct{} {
	out := make(map[string]struct{})
	if r.adminRole != "" {
		for _, role := range roles {
			if role == r.adminRole {
				for name := range r.descriptors {
					out[name] = struct{}{}
				}
				return out
			}
		}
	}
	for _, role := range roles {
		for _, capName := range r.roleMap[role] {
			if _, known := r.descriptors[capName]; known {
				out[capName] = struct{}{}
			}
		}
	}
	return out
}

// AccessibleNames is Accessible as a sorted slice, convenient for
// deterministic logging and tests.
func (r *CapabilityRegistry) AccessibleNames(roles []string) []string {
	set := r.Accessible(roles)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
