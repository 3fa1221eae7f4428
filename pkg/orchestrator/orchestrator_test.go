package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebridge/agentcore/pkg/capability"
	"github.com/corebridge/agentcore/pkg/config"
	"github.com/corebridge/agentcore/pkg/llm"
	"github.com/corebridge/agentcore/pkg/rbac"
	"github.com/corebridge/agentcore/pkg/registry"
	"github.com/corebridge/agentcore/pkg/resolver"
)

type fakeStore struct {
	turns []Turn
}

func (s *fakeStore) CreateSession(ctx context.Context, rbacCtx rbac.Context) (string, error) {
	return "session-1", nil
}

func (s *fakeStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]Turn, error) {
	return nil, nil
}

func (s *fakeStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) (int, error) {
	turn.TurnNumber = len(s.turns) + 1
	s.turns = append(s.turns, turn)
	return turn.TurnNumber, nil
}

// scriptedLLM drives a sequence of canned replies keyed by call index,
// mimicking a scripted language model for the end-to-end scenarios in
// spec.md §8.
type scriptedLLM struct {
	calls   int
	replies []func(messages []llm.Message) (map[string]any, int)
}

func newScriptedServer(t *testing.T, replies ...map[string]any) *httptest.Server {
	t.Helper()
	idx := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := replies[idx]
		if idx < len(replies)-1 {
			idx++
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newCapabilityServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			ID     int    `json:"id"`
		}
		body, _ := json.Marshal(req)
		_ = body
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "initialize":
			json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{}})
		case "tools/list":
			json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{
				"tools": []any{
					map[string]any{"name": "query_sql", "description": "runs a query", "inputSchema": map[string]any{}},
				},
			}})
		case "tools/call":
			json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{
				"content": []any{map[string]any{"type": "text", "text": `{"success":true,"row_count":1}`}},
			}})
		}
	}))
}

func buildOrchestratorWithResolver(t *testing.T, llmServerURL string, capServerURL string, res *resolver.Resolver) (*Orchestrator, *fakeStore) {
	cfg := config.Config{
		Capabilities: map[string]config.CapabilityConfig{
			"sales": {URL: capServerURL},
		},
		RolesToCapabilities: map[string][]string{
			"sales_rep": {"sales"},
		},
	}
	reg := registry.NewCapabilityRegistry(cfg)
	loader := capability.NewLoader(reg, nil)

	chat, err := llm.NewClient(llm.Config{Model: "test-model", APIKey: "key", Host: llmServerURL})
	require.NoError(t, err)

	store := &fakeStore{}
	orch := New(Config{MaxRounds: 4, MaxParallelToolCalls: 2}, reg, loader, chat, store, res, nil)
	return orch, store
}

func buildOrchestrator(t *testing.T, llmServerURL string, capServerURL string) (*Orchestrator, *fakeStore) {
	return buildOrchestratorWithResolver(t, llmServerURL, capServerURL, nil)
}

func TestHandle_ConversationalGreeting(t *testing.T) {
	llmSrv := newScriptedServer(t, map[string]any{
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": "Hello! How can I help?"}},
		"usage":       map[string]any{"input_tokens": 1, "output_tokens": 1},
	})
	defer llmSrv.Close()

	orch, store := buildOrchestrator(t, llmSrv.URL, "")
	ctx := rbac.Context{CallerID: "dev", TenantID: "dev", Roles: []string{"sales_rep"}, Admin: false, Scope: rbac.NewAccessScope()}

	result, err := orch.Handle(context.Background(), Request{Message: "hello", RBAC: ctx})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.FinalAnswer)
	assert.Equal(t, "Hello! How can I help?", result.AssistantMessage)
	assert.Equal(t, 1, result.ExecutionMetadata.Rounds)
	require.Len(t, store.turns, 1)
	assert.Equal(t, 0, len(store.turns[0].Records))
	assert.Equal(t, 1, store.turns[0].TurnNumber)
	assert.Equal(t, "Hello! How can I help?", store.turns[0].AssistantMessage)
	assert.Equal(t, 1, result.TurnID)
}

func TestHandle_NoAccessibleCapabilities(t *testing.T) {
	orch, store := buildOrchestrator(t, "", "")
	ctx := rbac.Context{CallerID: "c", TenantID: "t", Roles: []string{"nobody"}, Scope: rbac.NewAccessScope()}

	result, err := orch.Handle(context.Background(), Request{Message: "hi", RBAC: ctx})
	require.NoError(t, err)
	assert.True(t, result.FinalAnswer)
	assert.Equal(t, "no_accessible_capabilities", result.ExecutionMetadata.Reason)
	require.Len(t, store.turns, 1)
	assert.Equal(t, "hi", store.turns[0].UserMessage)
	assert.Empty(t, store.turns[0].Records)
	assert.Equal(t, 1, result.TurnID)
}

func TestHandle_SingleCapabilityDataQuestion(t *testing.T) {
	capSrv := newCapabilityServer(t)
	defer capSrv.Close()

	llmSrv := newScriptedServer(t,
		map[string]any{
			"stop_reason": "tool_use",
			"content": []map[string]any{
				{"type": "tool_use", "id": "call-1", "name": "sales__query_sql", "input": map[string]any{"query": "select revenue"}},
			},
			"usage": map[string]any{"input_tokens": 5, "output_tokens": 5},
		},
		map[string]any{
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "Microsoft's revenue is in the data above."}},
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 5},
		},
	)
	defer llmSrv.Close()

	orch, store := buildOrchestrator(t, llmSrv.URL, capSrv.URL)
	ctx := rbac.Context{CallerID: "dev", TenantID: "dev", Roles: []string{"sales_rep"}, Scope: rbac.NewAccessScope()}

	result, err := orch.Handle(context.Background(), Request{Message: "Show revenue for Microsoft", RBAC: ctx})
	require.NoError(t, err)

	assert.True(t, result.FinalAnswer)
	assert.Equal(t, 2, result.ExecutionMetadata.Rounds)
	require.Len(t, store.turns, 1)
	require.Len(t, store.turns[0].Records, 1)
	assert.True(t, store.turns[0].Records[0].Success)
}

func TestHandle_UnsafePayload(t *testing.T) {
	capSrv := newCapabilityServer(t)
	defer capSrv.Close()

	llmSrv := newScriptedServer(t,
		map[string]any{
			"stop_reason": "tool_use",
			"content": []map[string]any{
				{"type": "tool_use", "id": "call-1", "name": "sales__query_sql", "input": map[string]any{"query": "DROP TABLE accounts"}},
			},
			"usage": map[string]any{"input_tokens": 5, "output_tokens": 5},
		},
		map[string]any{
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "I can't run that, it looks destructive."}},
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 5},
		},
	)
	defer llmSrv.Close()

	orch, store := buildOrchestrator(t, llmSrv.URL, capSrv.URL)
	orch.safety = NewSafetyFilters([]string{"drop table"}, 16000)
	ctx := rbac.Context{CallerID: "dev", TenantID: "dev", Roles: []string{"sales_rep"}, Scope: rbac.NewAccessScope()}

	result, err := orch.Handle(context.Background(), Request{Message: "drop the accounts table", RBAC: ctx})
	require.NoError(t, err)

	require.Len(t, store.turns[0].Records, 1)
	assert.False(t, store.turns[0].Records[0].Success)
	assert.Equal(t, ErrUnsafePayload, store.turns[0].Records[0].Reason)
	assert.True(t, result.FinalAnswer)
}

func TestHandle_RoundLimitBreach(t *testing.T) {
	capSrv := newCapabilityServer(t)
	defer capSrv.Close()

	// Always emits a tool call; never terminates on its own.
	llmSrv := newScriptedServer(t, map[string]any{
		"stop_reason": "tool_use",
		"content": []map[string]any{
			{"type": "tool_use", "id": "call-1", "name": "sales__query_sql", "input": map[string]any{"query": "select 1"}},
		},
		"usage": map[string]any{"input_tokens": 1, "output_tokens": 1},
	})
	defer llmSrv.Close()

	orch, _ := buildOrchestrator(t, llmSrv.URL, capSrv.URL)
	orch.cfg.MaxRounds = 2
	ctx := rbac.Context{CallerID: "dev", TenantID: "dev", Roles: []string{"sales_rep"}, Scope: rbac.NewAccessScope()}

	result, err := orch.Handle(context.Background(), Request{Message: "keep going", RBAC: ctx})
	require.NoError(t, err)

	assert.False(t, result.FinalAnswer)
	assert.Equal(t, 2, result.ExecutionMetadata.Rounds)
	assert.Equal(t, "timeout", result.ExecutionMetadata.Reason)
}

// newRecordingCapabilityServer behaves like newCapabilityServer but
// captures the arguments of the last tools/call request, so tests can
// assert on what dispatchOne actually sent over the wire.
func newRecordingCapabilityServer(t *testing.T, lastArgs *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string         `json:"method"`
			ID     int            `json:"id"`
			Params map[string]any `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "initialize":
			json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{}})
		case "tools/list":
			json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{
				"tools": []any{
					map[string]any{"name": "query_sql", "description": "runs a query", "inputSchema": map[string]any{}},
				},
			}})
		case "tools/call":
			if args, ok := req.Params["arguments"].(map[string]any); ok {
				*lastArgs = args
			}
			json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{
				"content": []any{map[string]any{"type": "text", "text": `{"success":true,"row_count":1}`}},
			}})
		}
	}))
}

func TestHandle_ResolvesAccountMentionsBeforeDispatch(t *testing.T) {
	var lastArgs map[string]any
	capSrv := newRecordingCapabilityServer(t, &lastArgs)
	defer capSrv.Close()

	llmSrv := newScriptedServer(t,
		map[string]any{
			"stop_reason": "tool_use",
			"content": []map[string]any{
				{"type": "tool_use", "id": "call-1", "name": "sales__query_sql", "input": map[string]any{
					"query":              "select revenue",
					"accounts_mentioned": []string{"Northwind"},
				}},
			},
			"usage": map[string]any{"input_tokens": 5, "output_tokens": 5},
		},
		map[string]any{
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "Northwind's revenue is above."}},
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 5},
		},
	)
	defer llmSrv.Close()

	res := resolver.New(resolver.Config{})
	res.Refit([]resolver.Entity{
		{ID: "acc-001", Name: "Northwind Traders"},
		{ID: "acc-002", Name: "Contoso Logistics"},
	})

	orch, _ := buildOrchestratorWithResolver(t, llmSrv.URL, capSrv.URL, res)
	ctx := rbac.Context{CallerID: "dev", TenantID: "dev", Roles: []string{"sales_rep"}, Scope: rbac.NewAccessScope()}
	ctx.Scope.AllEntities = true

	result, err := orch.Handle(context.Background(), Request{Message: "Show revenue for Northwind", RBAC: ctx})
	require.NoError(t, err)
	assert.True(t, result.FinalAnswer)

	require.NotNil(t, lastArgs)
	resolved, ok := lastArgs["accounts_mentioned"].([]any)
	require.True(t, ok)
	require.Len(t, resolved, 1)
	assert.Equal(t, "acc-001", resolved[0])
}

func TestHandle_UnresolvedAccountMentionIsDropped(t *testing.T) {
	var lastArgs map[string]any
	capSrv := newRecordingCapabilityServer(t, &lastArgs)
	defer capSrv.Close()

	llmSrv := newScriptedServer(t,
		map[string]any{
			"stop_reason": "tool_use",
			"content": []map[string]any{
				{"type": "tool_use", "id": "call-1", "name": "sales__query_sql", "input": map[string]any{
					"query":              "select revenue",
					"accounts_mentioned": []string{"a company nobody has ever heard of"},
				}},
			},
			"usage": map[string]any{"input_tokens": 5, "output_tokens": 5},
		},
		map[string]any{
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "I couldn't find that account."}},
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 5},
		},
	)
	defer llmSrv.Close()

	res := resolver.New(resolver.Config{})
	res.Refit([]resolver.Entity{
		{ID: "acc-001", Name: "Northwind Traders"},
	})

	orch, _ := buildOrchestratorWithResolver(t, llmSrv.URL, capSrv.URL, res)
	ctx := rbac.Context{CallerID: "dev", TenantID: "dev", Roles: []string{"sales_rep"}, Scope: rbac.NewAccessScope()}
	ctx.Scope.AllEntities = true

	_, err := orch.Handle(context.Background(), Request{Message: "Show revenue for Acme", RBAC: ctx})
	require.NoError(t, err)

	require.NotNil(t, lastArgs)
	resolved, ok := lastArgs["accounts_mentioned"].([]any)
	require.True(t, ok)
	assert.Empty(t, resolved)
}
