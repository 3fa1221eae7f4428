package capability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeToolCallServer(t *testing.T, resp rpcResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp.ID = req.ID
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestCallTool_InvalidParamsSignalsSchemaMismatch(t *testing.T) {
	srv := fakeToolCallServer(t, rpcResponse{
		JSONRPC: "2.0",
		Error:   &rpcError{Code: jsonRPCInvalidParams, Message: "arguments do not match tool schema"},
	})
	defer srv.Close()

	c := NewClient("sales", srv.URL, "", time.Second)
	result, err := c.CallTool(context.Background(), "query_sql", map[string]any{"query": "select 1"})
	require.NoError(t, err)
	assert.True(t, SchemaMismatch(result))
	assert.Equal(t, "arguments do not match tool schema", result["error"])
}

func TestCallTool_OtherRPCErrorsDoNotSignalSchemaMismatch(t *testing.T) {
	srv := fakeToolCallServer(t, rpcResponse{
		JSONRPC: "2.0",
		Error:   &rpcError{Code: -32603, Message: "internal error"},
	})
	defer srv.Close()

	c := NewClient("sales", srv.URL, "", time.Second)
	result, err := c.CallTool(context.Background(), "query_sql", map[string]any{"query": "select 1"})
	require.NoError(t, err)
	assert.False(t, SchemaMismatch(result))
}

func TestCallTool_DecodesEnvelopeFromContent(t *testing.T) {
	srv := fakeToolCallServer(t, rpcResponse{
		JSONRPC: "2.0",
		Result: map[string]any{
			"content": []any{map[string]any{"type": "text", "text": `{"success":true,"row_count":1}`}},
		},
	})
	defer srv.Close()

	c := NewClient("sales", srv.URL, "", time.Second)
	result, err := c.CallTool(context.Background(), "query_sql", nil)
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, float64(1), result["row_count"])
}
