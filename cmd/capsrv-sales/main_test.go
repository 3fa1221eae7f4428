package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebridge/agentcore/pkg/capsrv"
	"github.com/corebridge/agentcore/pkg/rbac"
)

func newTestExecutor(t *testing.T) *sqlExecutor {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, seed(db, "sqlite"))
	return &sqlExecutor{db: db, dialect: "sqlite", patterns: capsrv.DefaultDangerousPatterns}
}

func TestSqlExecutorRunRejectsNonSelect(t *testing.T) {
	exec := newTestExecutor(t)
	res := exec.run(context.Background(), "DELETE FROM accounts", nil, rbac.Context{Scope: rbac.NewAccessScope()})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "SELECT")
}

func TestSqlExecutorRunRejectsEmptyQuery(t *testing.T) {
	exec := newTestExecutor(t)
	res := exec.run(context.Background(), "   ", nil, rbac.Context{Scope: rbac.NewAccessScope()})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "required")
}

func TestSqlExecutorRunAdminSeesAllAccounts(t *testing.T) {
	exec := newTestExecutor(t)
	rbacCtx := rbac.Context{Admin: true, Scope: rbac.NewAccessScope()}

	res := exec.run(context.Background(), "SELECT account_id FROM accounts", nil, rbacCtx)
	require.True(t, res.Success)
	assert.Equal(t, 3, res.RowCount)
	assert.Len(t, res.SampleRows, 3)
}

func TestSqlExecutorRunFiltersByEntityScope(t *testing.T) {
	exec := newTestExecutor(t)
	scope := rbac.NewAccessScope()
	scope.EntityIDs["acc-001"] = struct{}{}
	rbacCtx := rbac.Context{Scope: scope}

	res := exec.run(context.Background(), "SELECT account_id FROM accounts", nil, rbacCtx)
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "acc-001", res.Data[0]["account_id"])
}

func TestSqlExecutorRunFiltersByOwnedOnly(t *testing.T) {
	exec := newTestExecutor(t)
	scope := rbac.NewAccessScope()
	scope.OwnedOnly = true
	rbacCtx := rbac.Context{CallerID: "alice@example.com", Scope: scope}

	res := exec.run(context.Background(), "SELECT account_id, owner_email FROM accounts", nil, rbacCtx)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.RowCount)
	for _, row := range res.Data {
		assert.NotEqual(t, "acc-002", row["account_id"])
	}
}

func TestSqlExecutorRunNoScopeReturnsNoRows(t *testing.T) {
	exec := newTestExecutor(t)
	res := exec.run(context.Background(), "SELECT account_id FROM accounts", nil, rbac.Context{Scope: rbac.NewAccessScope()})
	require.True(t, res.Success)
	assert.Equal(t, 0, res.RowCount)
}

func TestSqlExecutorPatternsBlockDangerousQuery(t *testing.T) {
	exec := newTestExecutor(t)
	res := exec.run(context.Background(), "SELECT account_id FROM accounts", nil, rbac.Context{Admin: true})
	assert.True(t, res.Success)

	blocked, reason := capsrv.CheckBlocklist("DROP TABLE accounts", exec.patterns)
	assert.True(t, blocked)
	assert.NotEmpty(t, reason)
}
