package capsrv

import "github.com/corebridge/agentcore/pkg/rbac"

// ParseRBACContext rebuilds an rbac.Context from a call_tool request's
// "rbac_context" argument (spec.md §6), the wire shape the
// orchestrator's withRBACEnvelope produces. Missing or malformed
// fields degrade to their zero value rather than erroring — a
// capability server treats an under-specified context as the least
// privileged one, never the most.
func ParseRBACContext(args map[string]any) rbac.Context {
	raw, _ := args["rbac_context"].(map[string]any)
	if raw == nil {
		return rbac.Context{Scope: rbac.NewAccessScope()}
	}

	ctx := rbac.Context{
		CallerID: stringField(raw, "caller_id"),
		TenantID: stringField(raw, "tenant_id"),
		ObjectID: stringField(raw, "object_id"),
		Roles:    stringSliceField(raw, "roles"),
		Admin:    boolField(raw, "admin"),
		Scope:    scopeField(raw, "access_scope"),
	}
	return ctx
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func stringSliceField(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func scopeField(m map[string]any, key string) rbac.AccessScope {
	scope := rbac.NewAccessScope()
	raw, ok := m[key].(map[string]any)
	if !ok {
		return scope
	}
	scope.AllEntities = boolField(raw, "AllEntities")
	scope.OwnedOnly = boolField(raw, "OwnedOnly")
	if ids, ok := raw["EntityIDs"].(map[string]any); ok {
		for id := range ids {
			scope.EntityIDs[id] = struct{}{}
		}
	}
	return scope
}
