package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebridge/agentcore/pkg/rbac"
)

func newTestQuerier() *graphQuerier {
	return &graphQuerier{g: seed()}
}

func TestGraphQuerierRunRequiresAccountID(t *testing.T) {
	q := newTestQuerier()
	res := q.run("", "contacts", 2, nil, rbac.Context{Admin: true})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "account_id is required")
}

func TestGraphQuerierRunRejectsUnauthorizedAccount(t *testing.T) {
	q := newTestQuerier()
	res := q.run("acc-001", "contacts", 2, nil, rbac.Context{Scope: rbac.NewAccessScope()})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "does not have access")
}

func TestGraphQuerierRunRejectsUnknownAccount(t *testing.T) {
	q := newTestQuerier()
	res := q.run("acc-999", "contacts", 2, nil, rbac.Context{Admin: true})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown account_id")
}

func TestGraphQuerierRunRejectsUnsupportedRelation(t *testing.T) {
	q := newTestQuerier()
	res := q.run("acc-001", "orbits", 2, nil, rbac.Context{Admin: true})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unsupported relation")
}

func TestGraphQuerierRunContactsAdmin(t *testing.T) {
	q := newTestQuerier()
	res := q.run("acc-001", "contacts", 2, nil, rbac.Context{Admin: true})
	require.True(t, res.Success)
	assert.Equal(t, 2, res.RowCount)
}

func TestGraphQuerierRunRelatedAccountsFiltersOutContacts(t *testing.T) {
	q := newTestQuerier()
	res := q.run("acc-001", "related_accounts", 1, nil, rbac.Context{Admin: true})
	require.True(t, res.Success)
	for _, row := range res.Data {
		assert.Equal(t, "account", row["label"])
	}
}

func TestGraphQuerierRunScopedCallerOnlySeesAccessibleAccounts(t *testing.T) {
	q := newTestQuerier()
	scope := rbac.NewAccessScope()
	scope.EntityIDs["acc-001"] = struct{}{}
	rbacCtx := rbac.Context{Scope: scope}

	res := q.run("acc-001", "related_accounts", 1, nil, rbacCtx)
	require.True(t, res.Success)
	assert.Empty(t, res.Data)
}

func TestGraphQuerierRunDefaultsMaxDepthParsing(t *testing.T) {
	assert.Equal(t, 2, intArg(nil, 2))
	assert.Equal(t, 3, intArg(float64(3), 2))
}
