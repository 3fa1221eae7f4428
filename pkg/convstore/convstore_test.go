package convstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/corebridge/agentcore/pkg/orchestrator"
	"github.com/corebridge/agentcore/pkg/rbac"
)

func newTestStore(t *testing.T, maxTurns int) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, "sqlite", maxTurns)
	require.NoError(t, err)
	return store
}

func TestCreateSessionAndAppendTurn(t *testing.T) {
	store := newTestStore(t, 200)
	ctx := context.Background()

	sessionID, err := store.CreateSession(ctx, rbac.Context{CallerID: "u1", TenantID: "t1", Roles: []string{"sales_rep"}})
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)

	turn := orchestrator.Turn{
		TurnNumber:       1,
		UserMessage:      "show revenue",
		AssistantMessage: "revenue is $1M",
		Records: []orchestrator.ExecutionRecord{
			{Capability: "sales", Tool: "query_sql", Success: true, RowCount: 1},
		},
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
	}
	turnNumber, err := store.AppendTurn(ctx, sessionID, turn)
	require.NoError(t, err)
	assert.Equal(t, 1, turnNumber)

	turns, err := store.RecentTurns(ctx, sessionID, 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "show revenue", turns[0].UserMessage)
	require.Len(t, turns[0].Records, 1)
	assert.True(t, turns[0].Records[0].Success)
}

func TestRecentTurns_OrderedChronologically(t *testing.T) {
	store := newTestStore(t, 200)
	ctx := context.Background()

	sessionID, err := store.CreateSession(ctx, rbac.Context{CallerID: "u1", TenantID: "t1"})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err := store.AppendTurn(ctx, sessionID, orchestrator.Turn{
			TurnNumber:       i,
			UserMessage:      "msg",
			AssistantMessage: "reply",
		})
		require.NoError(t, err)
	}

	turns, err := store.RecentTurns(ctx, sessionID, 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, 2, turns[0].TurnNumber)
	assert.Equal(t, 3, turns[1].TurnNumber)
}

func TestElisionCollapsesOldestTurns(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	sessionID, err := store.CreateSession(ctx, rbac.Context{CallerID: "u1", TenantID: "t1"})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := store.AppendTurn(ctx, sessionID, orchestrator.Turn{TurnNumber: i, UserMessage: "msg", AssistantMessage: "reply"})
		require.NoError(t, err)
	}

	turns, err := store.RecentTurns(ctx, sessionID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Contains(t, turns[0].UserMessage, "Earlier in this conversation")
}

func TestCacheGetPut(t *testing.T) {
	store := newTestStore(t, 200)
	ctx := context.Background()

	_, ok := store.CacheGet(ctx, "missing")
	assert.False(t, ok)

	store.CachePut(ctx, "key1", []byte(`{"v":1}`), time.Minute)
	v, ok := store.CacheGet(ctx, "key1")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(v))
}

func TestCacheGet_ExpiredEntryIsMiss(t *testing.T) {
	store := newTestStore(t, 200)
	ctx := context.Background()

	store.CachePut(ctx, "key1", []byte(`"v"`), -time.Minute)
	_, ok := store.CacheGet(ctx, "key1")
	assert.False(t, ok)
}

func TestEmbeddingGetPut(t *testing.T) {
	store := newTestStore(t, 200)
	ctx := context.Background()

	_, ok := store.EmbeddingGet(ctx, "hello world")
	assert.False(t, ok)

	store.EmbeddingPut(ctx, "hello world", []float64{0.1, 0.2, 0.3}, time.Hour)
	v, ok := store.EmbeddingGet(ctx, "hello world")
	require.True(t, ok)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, v)
}

func TestSubmitFeedback(t *testing.T) {
	store := newTestStore(t, 200)
	ctx := context.Background()

	sessionID, err := store.CreateSession(ctx, rbac.Context{CallerID: "u1", TenantID: "t1"})
	require.NoError(t, err)

	require.NoError(t, store.SubmitFeedback(ctx, sessionID, 1, 5, "great answer"))
}

func TestAppendTurn_SerializesPerSession(t *testing.T) {
	store := newTestStore(t, 200)
	ctx := context.Background()

	sessionID, err := store.CreateSession(ctx, rbac.Context{CallerID: "u1", TenantID: "t1"})
	require.NoError(t, err)

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		i := i
		go func() {
			_, err := store.AppendTurn(ctx, sessionID, orchestrator.Turn{TurnNumber: i, UserMessage: "m", AssistantMessage: "r"})
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}

	turns, err := store.RecentTurns(ctx, sessionID, 20)
	require.NoError(t, err)
	assert.Len(t, turns, 10)
}
