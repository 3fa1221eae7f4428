package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/corebridge/agentcore/pkg/capsrv"
)

// placeholders renders n bind placeholders for dialect, comma-joined.
func placeholders(dialect string, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = capsrv.BindPlaceholder(dialect, i+1)
	}
	return strings.Join(ph, ", ")
}

// seed creates the accounts/opportunities tables this example server
// queries and, if they're empty, loads a handful of rows so the
// end-to-end scenarios in spec.md §8 have something to find. Mirrors
// the Fabric lakehouse schema the original Salesforce MCP server
// queried against, reduced to what query_sql needs to demonstrate
// RBAC filtering.
func seed(db *sql.DB, dialect string) error {
	autoIncrement := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if dialect == "postgres" {
		autoIncrement = "SERIAL PRIMARY KEY"
	} else if dialect == "mysql" {
		autoIncrement = "INTEGER PRIMARY KEY AUTO_INCREMENT"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id ` + autoIncrement + `,
			account_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			owner_email TEXT NOT NULL,
			industry TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS opportunities (
			id ` + autoIncrement + `,
			account_id TEXT NOT NULL,
			owner_email TEXT NOT NULL,
			name TEXT NOT NULL,
			stage TEXT NOT NULL,
			amount REAL NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	accounts := []struct {
		id, name, owner, industry string
	}{
		{"acc-001", "Northwind Traders", "alice@example.com", "Retail"},
		{"acc-002", "Contoso Logistics", "bob@example.com", "Transportation"},
		{"acc-003", "Fabrikam Robotics", "alice@example.com", "Manufacturing"},
	}
	accountsQuery := fmt.Sprintf(`INSERT INTO accounts (account_id, name, owner_email, industry) VALUES (%s)`, placeholders(dialect, 4))
	for _, a := range accounts {
		if _, err := db.Exec(accountsQuery, a.id, a.name, a.owner, a.industry); err != nil {
			return err
		}
	}

	opps := []struct {
		account, owner, name, stage string
		amount                      float64
	}{
		{"acc-001", "alice@example.com", "Q3 replenishment", "negotiation", 42000},
		{"acc-002", "bob@example.com", "Fleet expansion", "closed_won", 118000},
		{"acc-003", "alice@example.com", "Line upgrade", "prospecting", 76500},
	}
	oppsQuery := fmt.Sprintf(`INSERT INTO opportunities (account_id, owner_email, name, stage, amount) VALUES (%s)`, placeholders(dialect, 5))
	for _, o := range opps {
		if _, err := db.Exec(oppsQuery, o.account, o.owner, o.name, o.stage, o.amount); err != nil {
			return err
		}
	}
	return nil
}
