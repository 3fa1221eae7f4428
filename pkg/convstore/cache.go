package convstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CacheGet looks up a cached value. Any backend error or expiry is
// treated as a miss — cache reads must never block the orchestration
// critical path (spec.md §4.9).
func (s *Store) CacheGet(ctx context.Context, key string) (value []byte, ok bool) {
	query := fmt.Sprintf(
		`SELECT value_json, expires_at FROM cache_entries WHERE %s = %s`,
		s.cacheKeyColumn(), s.placeholder(1),
	)
	var v string
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, key).Scan(&v, &expiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			warnOnError("cache_get", err)
		}
		return nil, false
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		return nil, false
	}
	return []byte(v), true
}

// CachePut upserts a cache entry with an optional TTL (zero means no
// expiry). Failures are logged, never returned: callers treat a
// failed write the same as a cache that simply didn't warm.
func (s *Store) CachePut(ctx context.Context, key string, value []byte, ttl time.Duration) {
	var expiresAt sql.NullTime
	if ttl != 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}

	query := s.upsertCacheQuery()
	if _, err := s.db.ExecContext(ctx, query, key, string(value), expiresAt); err != nil {
		warnOnError("cache_put", err)
	}
}

func (s *Store) upsertCacheQuery() string {
	col := s.cacheKeyColumn()
	switch s.dialect {
	case "postgres":
		return fmt.Sprintf(
			`INSERT INTO cache_entries (%s, value_json, expires_at) VALUES ($1, $2, $3)
			 ON CONFLICT (%s) DO UPDATE SET value_json = EXCLUDED.value_json, expires_at = EXCLUDED.expires_at`,
			col, col,
		)
	case "mysql":
		return fmt.Sprintf(
			`INSERT INTO cache_entries (%s, value_json, expires_at) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE value_json = VALUES(value_json), expires_at = VALUES(expires_at)`,
			col,
		)
	default:
		return fmt.Sprintf(
			`INSERT INTO cache_entries (%s, value_json, expires_at) VALUES (?, ?, ?)
			 ON CONFLICT (%s) DO UPDATE SET value_json = excluded.value_json, expires_at = excluded.expires_at`,
			col, col,
		)
	}
}
