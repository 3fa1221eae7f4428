package capsrv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRBACContextMissingField(t *testing.T) {
	ctx := ParseRBACContext(map[string]any{})
	assert.Equal(t, "", ctx.CallerID)
	assert.False(t, ctx.Admin)
	assert.False(t, ctx.Scope.AllEntities)
	assert.NotNil(t, ctx.Scope.EntityIDs)
}

func TestParseRBACContextFullRoundTrip(t *testing.T) {
	args := map[string]any{
		"rbac_context": map[string]any{
			"caller_id": "alice@example.com",
			"tenant_id": "tenant-1",
			"object_id": "obj-1",
			"roles":     []any{"sales_rep", "admin"},
			"admin":     true,
			"access_scope": map[string]any{
				"AllEntities": false,
				"OwnedOnly":   true,
				"EntityIDs": map[string]any{
					"acc-001": struct{}{},
					"acc-002": struct{}{},
				},
			},
		},
	}

	ctx := ParseRBACContext(args)
	assert.Equal(t, "alice@example.com", ctx.CallerID)
	assert.Equal(t, "tenant-1", ctx.TenantID)
	assert.Equal(t, "obj-1", ctx.ObjectID)
	assert.ElementsMatch(t, []string{"sales_rep", "admin"}, ctx.Roles)
	assert.True(t, ctx.Admin)
	assert.True(t, ctx.Scope.OwnedOnly)
	assert.False(t, ctx.Scope.AllEntities)
	assert.True(t, ctx.Scope.CanAccess("acc-001"))
	assert.True(t, ctx.Scope.CanAccess("acc-002"))
	assert.False(t, ctx.Scope.CanAccess("acc-003"))
}

func TestParseRBACContextMalformedAccessScope(t *testing.T) {
	args := map[string]any{
		"rbac_context": map[string]any{
			"caller_id":    "bob",
			"access_scope": "not-a-map",
		},
	}
	ctx := ParseRBACContext(args)
	assert.Equal(t, "bob", ctx.CallerID)
	assert.False(t, ctx.Scope.AllEntities)
	assert.NotNil(t, ctx.Scope.EntityIDs)
}
