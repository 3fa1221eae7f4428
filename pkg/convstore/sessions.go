package convstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corebridge/agentcore/pkg/rbac"
)

// CreateSession inserts a new session row and returns its id
// (spec.md §4.9 `create_session(rbac) -> session_id`).
func (s *Store) CreateSession(ctx context.Context, rbacCtx rbac.Context) (string, error) {
	id := newID()
	rolesJSON, err := json.Marshal(rbacCtx.Roles)
	if err != nil {
		return "", fmt.Errorf("convstore: marshal roles: %w", err)
	}

	now := time.Now()
	query := fmt.Sprintf(
		`INSERT INTO sessions (id, tenant_id, caller_id, roles_json, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6),
	)
	if _, err := s.db.ExecContext(ctx, query, id, rbacCtx.TenantID, rbacCtx.CallerID, string(rolesJSON), now, now); err != nil {
		return "", fmt.Errorf("convstore: insert session: %w", err)
	}
	return id, nil
}
