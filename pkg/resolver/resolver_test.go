package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebridge/agentcore/pkg/rbac"
)

func sampleEntities() []Entity {
	return []Entity{
		{ID: "acct-1", Name: "Microsoft Corporation", Description: "Software and cloud services", Industry: "Technology", Aliases: []string{"MSFT", "Microsoft"}},
		{ID: "acct-2", Name: "Micro Systems Inc", Description: "Industrial automation", Industry: "Manufacturing"},
		{ID: "acct-3", Name: "Apple Inc", Description: "Consumer electronics", Industry: "Technology", Aliases: []string{"AAPL"}},
	}
}

func adminCtx() rbac.Context {
	return rbac.Context{CallerID: "u1", Admin: true, Scope: rbac.NewAccessScope()}
}

func TestResolve_ConfidentExactName(t *testing.T) {
	r := New(Config{})
	r.Refit(sampleEntities())

	result := r.Resolve("Microsoft Corporation", adminCtx())
	require.True(t, result.Confident)
	assert.Equal(t, "acct-1", result.Match.EntityID)
	assert.GreaterOrEqual(t, result.Match.Similarity, 0.7)
}

func TestResolve_AmbiguousReturnsCandidates(t *testing.T) {
	r := New(Config{MinSimilarity: 0.01, ConfidentThreshold: 0.99})
	r.Refit(sampleEntities())

	result := r.Resolve("micro", adminCtx())
	assert.False(t, result.Confident)
	assert.NotEmpty(t, result.Candidates)
}

func TestResolve_RBACFiltersInaccessibleEntities(t *testing.T) {
	r := New(Config{})
	r.Refit(sampleEntities())

	scope := rbac.NewAccessScope()
	scope.EntityIDs["acct-3"] = struct{}{}
	ctx := rbac.Context{CallerID: "u2", Admin: false, Scope: scope}

	result := r.Resolve("Microsoft Corporation", ctx)
	assert.False(t, result.Confident)
	assert.Empty(t, result.Candidates)
}

func TestResolve_NoMatchBelowFloor(t *testing.T) {
	r := New(Config{})
	r.Refit(sampleEntities())

	result := r.Resolve("zzz nonexistent gibberish", adminCtx())
	assert.False(t, result.Confident)
	assert.Empty(t, result.Candidates)
}

func TestResolve_UnfittedResolverReturnsEmpty(t *testing.T) {
	r := New(Config{})
	result := r.Resolve("anything", adminCtx())
	assert.False(t, result.Confident)
	assert.Empty(t, result.Candidates)
}
