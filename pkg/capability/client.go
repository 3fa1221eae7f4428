// Package capability implements C3, the Capability Client, and C4, the
// Capability Loader: a pooled, namespaced view over every capability
// server reachable through the Model Context Protocol.
package capability

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/corebridge/agentcore/pkg/httpclient"
)

// Tool is a capability-server tool definition as returned by
// tools/list, carrying the schema needed to hand to the chat model.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Client speaks the capability protocol (MCP over streamable HTTP) to
// a single capability server (spec.md §4.3, C3).
type Client struct {
	name       string
	url        string
	credential string
	http       *httpclient.Client

	sessionMu sync.RWMutex
	sessionID string
}

// NewClient builds a Client for one capability server. credential is
// the bearer token minted for this capability, or "" if unauthenticated.
func NewClient(name, url, credential string, timeout time.Duration) *Client {
	return &Client{
		name:       name,
		url:        url,
		credential: credential,
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(1),
			httpclient.WithBaseDelay(500*time.Millisecond),
		),
	}
}

// Discover performs MCP initialize + tools/list against the capability
// server (spec.md §4.4 `discover(capability)`).
func (c *Client) Discover(ctx context.Context) ([]Tool, error) {
	initResp, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo": map[string]any{
			"name":    "agentcore",
			"version": "1.0.0",
		},
		"capabilities": map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("capability %s: initialize: %w", c.name, err)
	}
	if initResp.Error != nil {
		return nil, fmt.Errorf("capability %s: initialize error: %s", c.name, initResp.Error.Message)
	}

	listResp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("capability %s: tools/list: %w", c.name, err)
	}
	if listResp.Error != nil {
		return nil, fmt.Errorf("capability %s: tools/list error: %s", c.name, listResp.Error.Message)
	}

	resultMap, ok := listResp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("capability %s: unexpected tools/list result shape", c.name)
	}
	rawTools, ok := resultMap["tools"].([]any)
	if !ok {
		return nil, fmt.Errorf("capability %s: tools/list missing tools array", c.name)
	}

	tools := make([]Tool, 0, len(rawTools))
	for _, raw := range rawTools {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		desc, _ := m["description"].(string)
		schema, _ := m["inputSchema"].(map[string]any)
		if !validToolSchema(schema) {
			slog.Warn("capability: dropping tool with malformed parameter schema", "capability", c.name, "tool", name)
			continue
		}
		tools = append(tools, Tool{Name: name, Description: desc, InputSchema: schema})
	}
	return tools, nil
}

// validToolSchema structurally validates a discovered tool's parameter
// schema by round-tripping it through jsonschema.Schema, dropping any
// tool whose descriptor isn't well-formed JSON Schema before it ever
// reaches the LLM's tool catalog (C4 discovery, spec.md §4.4).
func validToolSchema(schema map[string]any) bool {
	if schema == nil {
		return true
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return false
	}
	var s jsonschema.Schema
	return json.Unmarshal(raw, &s) == nil
}

// jsonRPCInvalidParams is the standard JSON-RPC 2.0 code a server
// returns when the arguments it received no longer match a tool's
// declared parameters (spec.md §4.4 "schema mismatch" signal) — the
// discovery cache for that capability is stale and must be dropped.
const jsonRPCInvalidParams = -32602

// SchemaMismatch reports whether a CallTool result carries the
// schema-mismatch signal (spec.md §4.4): the caller should Refresh
// the capability's loader cache before retrying.
func SchemaMismatch(result map[string]any) bool {
	mismatch, _ := result["schema_mismatch"].(bool)
	return mismatch
}

// CallTool invokes one tool by its unprefixed name (spec.md §4.3
// `call_tool(tool, args)`). A malformed-but-reachable response is
// returned as a normal result carrying an "error" field, matching the
// teacher's MCP toolset convention of surfacing application errors
// without returning a Go error.
func (c *Client) CallTool(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	resp, err := c.call(ctx, "tools/call", map[string]any{
		"name":      tool,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("capability %s: tool %s: %w", c.name, tool, err)
	}
	if resp.Error != nil {
		result := map[string]any{"error": resp.Error.Message}
		if resp.Error.Code == jsonRPCInvalidParams {
			result["schema_mismatch"] = true
		}
		return result, nil
	}

	result := make(map[string]any)
	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		result["result"] = resp.Result
		return result, nil
	}

	if isErr, _ := resultMap["isError"].(bool); isErr {
		result["error"] = firstText(resultMap)
		if result["error"] == nil {
			result["error"] = "unknown error"
		}
		return result, nil
	}

	text, ok := firstText(resultMap).(string)
	if !ok {
		if v := firstText(resultMap); v != nil {
			result["result"] = v
		}
		return result, nil
	}

	// Capability servers encode their C8 execution envelope
	// ({success, row_count, columns?, sample_rows?, ...}) as the JSON
	// text of the tool's single content block; surface those fields
	// directly rather than nesting them under "result".
	var envelope map[string]any
	if err := json.Unmarshal([]byte(text), &envelope); err == nil {
		return envelope, nil
	}
	result["result"] = text
	return result, nil
}

func firstText(resultMap map[string]any) any {
	content, ok := resultMap["content"].([]any)
	if !ok {
		return nil
	}
	var texts []string
	for _, c := range content {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if cm["type"] == "text" {
			if text, ok := cm["text"].(string); ok {
				texts = append(texts, text)
			}
		}
	}
	switch len(texts) {
	case 0:
		return nil
	case 1:
		return texts[0]
	default:
		return texts
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	c.sessionMu.RLock()
	sessionID := c.sessionID
	c.sessionMu.RUnlock()
	if sessionID != "" {
		req.Header.Set("mcp-session-id", sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if newSession := resp.Header.Get("mcp-session-id"); newSession != "" {
		c.sessionMu.Lock()
		c.sessionID = newSession
		c.sessionMu.Unlock()
	}

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSE(resp.Body)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out rpcResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}

// readSSE reads the first complete JSON-RPC message from an SSE body,
// the transport streamable-http capability servers may use for
// long-running tool calls.
func readSSE(body io.ReadCloser) (*rpcResponse, error) {
	defer body.Close()
	reader := bufio.NewReader(body)
	var data strings.Builder

	for {
		line, err := reader.ReadBytes('\n')
		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" && data.Len() > 0 {
			var out rpcResponse
			if jerr := json.Unmarshal([]byte(data.String()), &out); jerr == nil {
				return &out, nil
			}
			data.Reset()
		} else if strings.HasPrefix(trimmed, "data:") {
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
		}
		if err != nil {
			break
		}
	}
	if data.Len() > 0 {
		var out rpcResponse
		if jerr := json.Unmarshal([]byte(data.String()), &out); jerr == nil {
			return &out, nil
		}
	}
	return nil, fmt.Errorf("sse stream ended without a complete message")
}

// Close releases client resources. Streamable-HTTP clients hold no
// persistent connection, so this is a no-op kept for symmetry with
// stdio-style transports.
func (c *Client) Close() error {
	return nil
}
