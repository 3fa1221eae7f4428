// Package capsrv is shared plumbing for the example capability
// servers (cmd/capsrv-sales, cmd/capsrv-graph): the C8 response
// envelope, RBAC context parsing off a tool call's arguments, and a
// second dangerous-pattern check applied server-side.
package capsrv

// Result is the call_tool response envelope (spec.md §6): every
// example capability server tool returns one of these, marshaled as
// the MCP tool result's JSON payload.
type Result struct {
	Success          bool             `json:"success"`
	RowCount         int              `json:"row_count"`
	Error            string           `json:"error,omitempty"`
	Source           string           `json:"source"`
	Query            string           `json:"query,omitempty"`
	ResolvedAccounts []string         `json:"resolved_accounts,omitempty"`
	Data             []map[string]any `json:"data,omitempty"`
	Columns          []string         `json:"columns,omitempty"`
	SampleRows       []map[string]any `json:"sample_rows,omitempty"`
}

// maxSampleRows bounds how many rows of a successful query are echoed
// back in sample_rows; the orchestrator's summary is the only view
// the LLM gets of tool output, so the sample must travel over the
// wire regardless of how much of data the caller keeps.
const maxSampleRows = 3

// Ok builds a successful Result, truncating data into sample_rows so
// the caller has row content to summarize without shipping the full
// result set twice.
func Ok(source string, data []map[string]any, columns []string) Result {
	sample := data
	if len(sample) > maxSampleRows {
		sample = sample[:maxSampleRows]
	}
	return Result{
		Success:    true,
		RowCount:   len(data),
		Source:     source,
		Data:       data,
		Columns:    columns,
		SampleRows: sample,
	}
}

// Err builds a failed Result; row_count stays 0 and data is omitted.
func Err(source, query, reason string) Result {
	return Result{
		Success: false,
		Source:  source,
		Query:   query,
		Error:   reason,
	}
}
