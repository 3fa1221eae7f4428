// Command capsrv-graph is an example C8 capability server: one MCP
// tool, query_graph, walking an in-memory directed graph of accounts
// and contacts seeded at startup (spec.md §4.8 [FULL]). It replaces
// the Gremlin traversal the original system ran against Cosmos DB —
// no graph server exists in this deployment, so the same traversal
// shape (find_contacts_for_account, find_related_accounts) is
// reimplemented as plain Go graph walks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/corebridge/agentcore/pkg/capsrv"
	"github.com/corebridge/agentcore/pkg/rbac"
)

func main() {
	listen := flag.String("listen", capsrv.EnvOr("CAPSRV_GRAPH_LISTEN", ":8091"), "listen address for the streamable-HTTP MCP transport")
	flag.Parse()

	g := seed()
	q := &graphQuerier{g: g}

	mcpServer := server.NewMCPServer("capsrv-graph", "1.0.0", server.WithToolCapabilities(true))

	paramSchema, err := capsrv.ParamSchema(graphParams{})
	if err != nil {
		slog.Error("capsrv-graph: build tool schema", "error", err)
		os.Exit(1)
	}
	tool := mcp.NewToolWithRawSchema("query_graph", "Traverse account/contact relationships (contacts or related accounts) with RBAC filtering applied server-side.", paramSchema)
	mcpServer.AddTool(tool, q.handle)

	httpServer := server.NewStreamableHTTPServer(mcpServer)
	slog.Info("capsrv-graph: listening", "addr", *listen)
	if err := httpServer.Start(*listen); err != nil {
		slog.Error("capsrv-graph: serve", "error", err)
		os.Exit(1)
	}
}

// graphParams is reflected into the tool's JSON Schema via
// capsrv.ParamSchema.
type graphParams struct {
	AccountID         string   `json:"account_id" jsonschema:"required,description=Account id to traverse from"`
	Relation          string   `json:"relation,omitempty" jsonschema:"description=contacts or related_accounts (default contacts)"`
	MaxDepth          int      `json:"max_depth,omitempty" jsonschema:"description=Traversal depth, default 2"`
	AccountsMentioned []string `json:"accounts_mentioned,omitempty" jsonschema:"description=Account names already resolved upstream by the account resolver"`
}

type graphQuerier struct {
	g *graph
}

func (q *graphQuerier) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	accountID, _ := args["account_id"].(string)
	relation, _ := args["relation"].(string)
	if relation == "" {
		relation = "contacts"
	}
	maxDepth := intArg(args["max_depth"], 2)
	resolved := capsrv.StringSliceArg(args["accounts_mentioned"])
	rbacCtx := capsrv.ParseRBACContext(args)

	result := q.run(accountID, relation, maxDepth, resolved, rbacCtx)
	return capsrv.ToolResult(result), nil
}

func (q *graphQuerier) run(accountID, relation string, maxDepth int, resolvedAccounts []string, rbacCtx rbac.Context) capsrv.Result {
	source := "graph"
	if accountID == "" {
		return capsrv.Err(source, "", "account_id is required")
	}
	if !rbacCtx.CanAccessEntity(accountID) {
		return capsrv.Err(source, accountID, "caller does not have access to this account")
	}
	if _, ok := q.g.vertexByID(accountID); !ok {
		return capsrv.Err(source, accountID, fmt.Sprintf("unknown account_id %q", accountID))
	}

	var edgeLabel string
	switch relation {
	case "contacts":
		edgeLabel = "has_contact"
	case "related_accounts":
		edgeLabel = ""
	default:
		return capsrv.Err(source, accountID, fmt.Sprintf("unsupported relation %q", relation))
	}

	related := q.g.relatedVertices(accountID, edgeLabel, maxDepth)

	data := make([]map[string]any, 0, len(related))
	for _, v := range related {
		if relation == "related_accounts" && v.label != "account" {
			continue
		}
		if v.label == "account" && !rbacCtx.CanAccessEntity(v.id) {
			continue
		}
		if v.label == "contact" && !rbacCtx.CanAccessEntity(v.accountID) {
			continue
		}
		row := map[string]any{"id": v.id, "label": v.label}
		for k, val := range v.properties {
			row[k] = val
		}
		data = append(data, row)
	}

	res := capsrv.Ok(source, data, nil)
	res.Query = fmt.Sprintf("%s from %s depth=%d", relation, accountID, maxDepth)
	res.ResolvedAccounts = resolvedAccounts
	return res
}

func intArg(v any, fallback int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return fallback
}
