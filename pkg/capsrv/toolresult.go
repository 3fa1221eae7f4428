package capsrv

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolResult marshals a Result as the tool result's text content.
// call_tool responses are read programmatically by the orchestrator's
// capability client (pkg/capability), which expects a JSON document
// it can decode field-by-field (spec.md §6) rather than free text.
func ToolResult(res Result) *mcp.CallToolResult {
	body, err := json.Marshal(res)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"success":false,"error":%q,"source":%q}`, err.Error(), res.Source))
	}
	return mcp.NewToolResultText(string(body))
}

// StringSliceArg coerces a decoded-JSON tool argument value into a
// string slice, dropping any non-string element rather than failing
// the whole call over one malformed entry.
func StringSliceArg(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// EnvOr returns the named environment variable, or fallback if unset
// or empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
