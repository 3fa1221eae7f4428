package convstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// EmbeddingGet looks up a cached embedding by the hash of its source
// text. Like CacheGet, any error degrades to a miss rather than
// propagating (spec.md §4.9).
func (s *Store) EmbeddingGet(ctx context.Context, text string) (vector []float64, ok bool) {
	query := fmt.Sprintf(`SELECT vector_json, expires_at FROM embeddings WHERE text_hash = %s`, s.placeholder(1))
	var raw string
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, hashText(text)).Scan(&raw, &expiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			warnOnError("embedding_get", err)
		}
		return nil, false
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		return nil, false
	}
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		warnOnError("embedding_get", err)
		return nil, false
	}
	return vector, true
}

// EmbeddingPut upserts a text's embedding vector, keyed by a hash of
// the text so arbitrarily long source strings stay out of the primary
// key.
func (s *Store) EmbeddingPut(ctx context.Context, text string, vector []float64, ttl time.Duration) {
	raw, err := json.Marshal(vector)
	if err != nil {
		warnOnError("embedding_put", err)
		return
	}
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, s.upsertEmbeddingQuery(), hashText(text), string(raw), expiresAt); err != nil {
		warnOnError("embedding_put", err)
	}
}

func (s *Store) upsertEmbeddingQuery() string {
	switch s.dialect {
	case "postgres":
		return `INSERT INTO embeddings (text_hash, vector_json, expires_at) VALUES ($1, $2, $3)
		        ON CONFLICT (text_hash) DO UPDATE SET vector_json = EXCLUDED.vector_json, expires_at = EXCLUDED.expires_at`
	case "mysql":
		return `INSERT INTO embeddings (text_hash, vector_json, expires_at) VALUES (?, ?, ?)
		        ON DUPLICATE KEY UPDATE vector_json = VALUES(vector_json), expires_at = VALUES(expires_at)`
	default:
		return `INSERT INTO embeddings (text_hash, vector_json, expires_at) VALUES (?, ?, ?)
		        ON CONFLICT (text_hash) DO UPDATE SET vector_json = excluded.vector_json, expires_at = excluded.expires_at`
	}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
