package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_TextAndToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"stop_reason": "tool_use",
			"content": []map[string]any{
				{"type": "text", "text": "Looking that up."},
				{"type": "tool_use", "id": "call-1", "name": "sales__lookup_account", "input": map[string]any{"name": "Acme"}},
			},
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{Model: "claude-test", APIKey: "key", Host: srv.URL})
	require.NoError(t, err)

	reply, err := c.Complete("system prompt", []Message{{Role: "user", Content: "find Acme"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Looking that up.", reply.Text)
	assert.Equal(t, 15, reply.TokensUsed)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call-1", reply.ToolCalls[0].ID)
	assert.Equal(t, "sales__lookup_account", reply.ToolCalls[0].Name)
	assert.Equal(t, "Acme", reply.ToolCalls[0].Args["name"])
}

func TestComplete_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Model: "claude-test", APIKey: "key", Host: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete("", []Message{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{Model: "claude-test"})
	assert.Error(t, err)
}
