package auth

import (
	"testing"
	"time"

	"github.com/corebridge/agentcore/pkg/config"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_DevelopmentMode(t *testing.T) {
	e := NewExtractor(config.ModeDevelopment)
	ctx := e.Extract("")
	assert.Equal(t, "dev", ctx.CallerID)
	assert.True(t, ctx.Admin)
	assert.True(t, ctx.Scope.AllEntities)
}

func TestExtract_ProductionMode_NoToken(t *testing.T) {
	e := NewExtractor(config.ModeProduction)
	ctx := e.Extract("")
	assert.Equal(t, "anonymous", ctx.CallerID)
	assert.False(t, ctx.Admin)
	assert.Equal(t, []string{"readonly"}, ctx.Roles)
}

func TestExtract_ProductionMode_MalformedToken(t *testing.T) {
	e := NewExtractor(config.ModeProduction)
	ctx := e.Extract("not-a-jwt")
	assert.Equal(t, "anonymous", ctx.CallerID)
}

func TestExtract_ProductionMode_ValidToken(t *testing.T) {
	tok := jwt.New()
	require.NoError(t, tok.Set("email", "alice@example.com"))
	require.NoError(t, tok.Set("tid", "tenant-1"))
	require.NoError(t, tok.Set("oid", "obj-123"))
	require.NoError(t, tok.Set("roles", []interface{}{"sales_rep", "admin"}))
	require.NoError(t, tok.Set(jwt.IssuedAtKey, time.Now()))

	signed, err := jwt.Sign(tok, jwt.WithInsecureNoSignature())
	require.NoError(t, err)

	e := NewExtractor(config.ModeProduction)
	ctx := e.Extract(string(signed))

	assert.Equal(t, "alice@example.com", ctx.CallerID)
	assert.Equal(t, "tenant-1", ctx.TenantID)
	assert.Equal(t, "obj-123", ctx.ObjectID)
	assert.ElementsMatch(t, []string{"sales_rep", "admin"}, ctx.Roles)
	assert.True(t, ctx.Admin)
}

func TestExtract_ProductionMode_SingleStringRole(t *testing.T) {
	tok := jwt.New()
	require.NoError(t, tok.Set("upn", "bob@example.com"))
	require.NoError(t, tok.Set("tid", "tenant-2"))
	require.NoError(t, tok.Set("roles", "sales_rep"))

	signed, err := jwt.Sign(tok, jwt.WithInsecureNoSignature())
	require.NoError(t, err)

	e := NewExtractor(config.ModeProduction)
	ctx := e.Extract(string(signed))

	assert.Equal(t, "bob@example.com", ctx.CallerID)
	assert.Equal(t, []string{"sales_rep"}, ctx.Roles)
	assert.False(t, ctx.Admin)
}
