package rbac

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func questionPlaceholder(n int) string { return "?" }

func TestAccountFilterSQLAdminBypasses(t *testing.T) {
	ctx := Context{Admin: true}
	clause, args := ctx.AccountFilterSQL("a", questionPlaceholder, 1)
	assert.Equal(t, "1=1", clause)
	assert.Empty(t, args)
}

func TestAccountFilterSQLAllEntitiesBypasses(t *testing.T) {
	ctx := Context{Scope: AccessScope{AllEntities: true}}
	clause, _ := ctx.AccountFilterSQL("", questionPlaceholder, 1)
	assert.Equal(t, "1=1", clause)
}

func TestAccountFilterSQLEntityIDsOnly(t *testing.T) {
	ctx := Context{Scope: AccessScope{EntityIDs: map[string]struct{}{"acc-1": {}}}}
	clause, args := ctx.AccountFilterSQL("a", questionPlaceholder, 1)
	assert.Equal(t, "a.account_id IN (?)", clause)
	assert.Equal(t, []any{"acc-1"}, args)
}

func TestAccountFilterSQLOwnedOnly(t *testing.T) {
	ctx := Context{CallerID: "alice@example.com", Scope: AccessScope{OwnedOnly: true}}
	clause, args := ctx.AccountFilterSQL("", questionPlaceholder, 1)
	assert.Equal(t, "owner_email = ?", clause)
	assert.Equal(t, []any{"alice@example.com"}, args)
}

func TestAccountFilterSQLNoAccessWhenScopeEmpty(t *testing.T) {
	ctx := Context{Scope: NewAccessScope()}
	clause, args := ctx.AccountFilterSQL("", questionPlaceholder, 1)
	assert.Equal(t, "1=0", clause)
	assert.Empty(t, args)
}

func TestAccountFilterSQLCombinesEntityAndOwnedWithPostgresPlaceholders(t *testing.T) {
	ctx := Context{
		CallerID: "bob@example.com",
		Scope: AccessScope{
			EntityIDs: map[string]struct{}{"acc-1": {}, "acc-2": {}},
			OwnedOnly: true,
		},
	}
	pg := func(n int) string { return fmt.Sprintf("$%d", n) }
	clause, args := ctx.AccountFilterSQL("a", pg, 1)
	assert.Contains(t, clause, "a.account_id IN (")
	assert.Contains(t, clause, "a.owner_email = $3")
	assert.Len(t, args, 3)
}
