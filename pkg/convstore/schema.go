package convstore

import (
	"context"
	"strings"
	"time"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id VARCHAR(255) PRIMARY KEY,
	tenant_id VARCHAR(255) NOT NULL,
	caller_id VARCHAR(255) NOT NULL,
	roles_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id VARCHAR(255) NOT NULL,
	turn_number INTEGER NOT NULL,
	user_message TEXT NOT NULL,
	assistant_message TEXT NOT NULL,
	records_json TEXT NOT NULL,
	is_summary BOOLEAN NOT NULL DEFAULT 0,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	sequence_num INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, sequence_num);

CREATE TABLE IF NOT EXISTS cache_entries (
	key VARCHAR(512) PRIMARY KEY,
	value_json TEXT NOT NULL,
	expires_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS embeddings (
	text_hash VARCHAR(64) PRIMARY KEY,
	vector_json TEXT NOT NULL,
	expires_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id VARCHAR(255) NOT NULL,
	turn_number INTEGER NOT NULL,
	rating INTEGER NOT NULL,
	comment TEXT,
	created_at TIMESTAMP NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id VARCHAR(255) PRIMARY KEY,
	tenant_id VARCHAR(255) NOT NULL,
	caller_id VARCHAR(255) NOT NULL,
	roles_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id SERIAL PRIMARY KEY,
	session_id VARCHAR(255) NOT NULL,
	turn_number INTEGER NOT NULL,
	user_message TEXT NOT NULL,
	assistant_message TEXT NOT NULL,
	records_json TEXT NOT NULL,
	is_summary BOOLEAN NOT NULL DEFAULT FALSE,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	sequence_num BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, sequence_num);

CREATE TABLE IF NOT EXISTS cache_entries (
	key VARCHAR(512) PRIMARY KEY,
	value_json TEXT NOT NULL,
	expires_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS embeddings (
	text_hash VARCHAR(64) PRIMARY KEY,
	vector_json TEXT NOT NULL,
	expires_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS feedback (
	id SERIAL PRIMARY KEY,
	session_id VARCHAR(255) NOT NULL,
	turn_number INTEGER NOT NULL,
	rating INTEGER NOT NULL,
	comment TEXT,
	created_at TIMESTAMP NOT NULL
);
`

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id VARCHAR(255) PRIMARY KEY,
	tenant_id VARCHAR(255) NOT NULL,
	caller_id VARCHAR(255) NOT NULL,
	roles_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	session_id VARCHAR(255) NOT NULL,
	turn_number INTEGER NOT NULL,
	user_message TEXT NOT NULL,
	assistant_message TEXT NOT NULL,
	records_json TEXT NOT NULL,
	is_summary BOOLEAN NOT NULL DEFAULT FALSE,
	started_at TIMESTAMP NULL,
	completed_at TIMESTAMP NULL,
	sequence_num BIGINT NOT NULL,
	INDEX idx_turns_session (session_id, sequence_num)
);

CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key VARCHAR(512) PRIMARY KEY,
	value_json TEXT NOT NULL,
	expires_at TIMESTAMP NULL
);

CREATE TABLE IF NOT EXISTS embeddings (
	text_hash VARCHAR(64) PRIMARY KEY,
	vector_json TEXT NOT NULL,
	expires_at TIMESTAMP NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	session_id VARCHAR(255) NOT NULL,
	turn_number INTEGER NOT NULL,
	rating INTEGER NOT NULL,
	comment TEXT,
	created_at TIMESTAMP NOT NULL
);
`

// initSchema creates every table this adapter depends on, tolerating
// concurrent callers racing to create the same schema (IF NOT EXISTS).
//
// MySQL reserves "key" as a column identifier, so its cache_entries
// table uses "cache_key" instead; cacheKeyColumn() below picks the
// right name per dialect.
func (s *Store) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var schema string
	switch s.dialect {
	case "postgres":
		schema = postgresSchema
	case "mysql":
		schema = mysqlSchema
	default:
		schema = sqliteSchema
	}

	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) cacheKeyColumn() string {
	if s.dialect == "mysql" {
		return "cache_key"
	}
	return "key"
}

func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
