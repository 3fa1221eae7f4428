// Command capsrv-sales is an example C8 capability server: one MCP
// tool, query_sql, executed against a SQL backend with RBAC-filtered
// account access (spec.md §4.8 [FULL]).
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/corebridge/agentcore/pkg/capsrv"
	"github.com/corebridge/agentcore/pkg/rbac"
)

func main() {
	dsn := flag.String("dsn", capsrv.EnvOr("CAPSRV_SALES_DSN", "sqlite:///tmp/capsrv-sales.db"), "database DSN, scheme-prefixed (sqlite://, postgres://, mysql://)")
	listen := flag.String("listen", capsrv.EnvOr("CAPSRV_SALES_LISTEN", ":8090"), "listen address for the streamable-HTTP MCP transport")
	flag.Parse()

	db, dialect, err := capsrv.OpenSQL(*dsn)
	if err != nil {
		slog.Error("capsrv-sales: open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := seed(db, dialect); err != nil {
		slog.Error("capsrv-sales: seed schema", "error", err)
		os.Exit(1)
	}

	exec := &sqlExecutor{db: db, dialect: dialect, patterns: capsrv.DefaultDangerousPatterns}

	mcpServer := server.NewMCPServer("capsrv-sales", "1.0.0", server.WithToolCapabilities(true))

	paramSchema, err := capsrv.ParamSchema(queryParams{})
	if err != nil {
		slog.Error("capsrv-sales: build tool schema", "error", err)
		os.Exit(1)
	}
	tool := mcp.NewToolWithRawSchema("query_sql", "Execute a read-only SQL query against the sales dataset with RBAC filtering applied server-side.", paramSchema)
	mcpServer.AddTool(tool, exec.handle)

	httpServer := server.NewStreamableHTTPServer(mcpServer)
	slog.Info("capsrv-sales: listening", "addr", *listen, "dialect", dialect)
	if err := httpServer.Start(*listen); err != nil {
		slog.Error("capsrv-sales: serve", "error", err)
		os.Exit(1)
	}
}

// queryParams is reflected into the tool's JSON Schema via
// capsrv.ParamSchema rather than hand-written.
type queryParams struct {
	Query             string   `json:"query" jsonschema:"required,description=SQL query to execute"`
	AccountsMentioned []string `json:"accounts_mentioned,omitempty" jsonschema:"description=Account names already resolved upstream by the account resolver"`
}

type sqlExecutor struct {
	db       *sql.DB
	dialect  string
	patterns []string
}

func (e *sqlExecutor) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	query, _ := args["query"].(string)
	rbacCtx := capsrv.ParseRBACContext(args)
	resolved := capsrv.StringSliceArg(args["accounts_mentioned"])

	if blocked, reason := capsrv.CheckBlocklist(query, e.patterns); blocked {
		return capsrv.ToolResult(capsrv.Err("sql", query, reason)), nil
	}

	result := e.run(ctx, query, resolved, rbacCtx)
	return capsrv.ToolResult(result), nil
}

// run re-derives the account filter from rbacCtx itself (never from
// caller-supplied account ids) and appends it to the query as an
// outer restriction, since the incoming query is treated as an
// untrusted SELECT body rather than a full statement the server
// controls end to end. The restriction references the query's result
// columns (account_id, and owner_email for an owned-only scope), so a
// query that does not select them fails and the error is returned.
func (e *sqlExecutor) run(ctx context.Context, query string, resolvedAccounts []string, rbacCtx rbac.Context) capsrv.Result {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return capsrv.Err("sql", query, "query is required")
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return capsrv.Err("sql", query, "only SELECT statements are permitted")
	}

	filterClause, filterArgs := rbacCtx.AccountFilterSQL("s", func(n int) string {
		return capsrv.BindPlaceholder(e.dialect, n)
	}, 1)

	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS s WHERE %s", trimmed, filterClause)

	rows, err := e.db.QueryContext(ctx, wrapped, filterArgs...)
	if err != nil {
		return capsrv.Err("sql", query, err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return capsrv.Err("sql", query, err.Error())
	}

	var data []map[string]any
	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return capsrv.Err("sql", query, err.Error())
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return capsrv.Err("sql", query, err.Error())
	}

	res := capsrv.Ok("sql", data, columns)
	res.Query = query
	res.ResolvedAccounts = resolvedAccounts
	return res
}

func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row, nil
}

