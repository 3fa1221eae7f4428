// Package rbac defines the RBAC Context propagated into every
// capability call, and the Access Scope used for row-level filtering.
package rbac

import (
	"fmt"
	"strings"
)

// AccessScope is the subset of entities a caller may see.
//
// Invariant: AllEntities implies any EntityIDs are informational only.
// OwnedOnly may combine with a non-empty EntityIDs set.
type AccessScope struct {
	AllEntities bool
	EntityIDs   map[string]struct{}
	OwnedOnly   bool
}

// NewAccessScope returns an empty, non-admin scope.
func NewAccessScope() AccessScope {
	return AccessScope{EntityIDs: make(map[string]struct{})}
}

// CanAccess reports whether the scope permits access to entityID.
func (s AccessScope) CanAccess(entityID string) bool {
	if s.AllEntities {
		return true
	}
	if s.EntityIDs == nil {
		return false
	}
	_, ok := s.EntityIDs[entityID]
	return ok
}

// EntityIDList returns the scope's entity ids as a sorted-free slice;
// callers that need stable ordering should sort the result themselves.
func (s AccessScope) EntityIDList() []string {
	ids := make([]string, 0, len(s.EntityIDs))
	for id := range s.EntityIDs {
		ids = append(ids, id)
	}
	return ids
}

// Context is the immutable, per-request RBAC Context (spec.md §3).
type Context struct {
	CallerID  string
	TenantID  string
	ObjectID  string
	Roles     []string
	Admin     bool
	Scope     AccessScope
	SessionID string
}

// HasRole reports whether the context carries the given role name.
func (c Context) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SortedRoles returns a copy of Roles sorted lexicographically, used
// by cache-key derivation (spec.md §3 Cache Entry) so role order never
// affects the key.
func (c Context) SortedRoles() []string {
	out := append([]string(nil), c.Roles...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// CanAccessOwned reports whether, given the scope's OwnedOnly flag and
// an optional owner identifier, the caller may access a record. When
// OwnedOnly is false, ownership is not considered.
func (c Context) CanAccessOwned(ownerID string) bool {
	if c.Admin {
		return true
	}
	if !c.Scope.OwnedOnly {
		return true
	}
	if ownerID == "" {
		return false
	}
	return strings.EqualFold(ownerID, c.CallerID)
}

// CanAccessEntity reports whether the caller may see entityID,
// honoring the admin short-circuit and the Access Scope.
func (c Context) CanAccessEntity(entityID string) bool {
	if c.Admin {
		return true
	}
	return c.Scope.CanAccess(entityID)
}

// AccountFilterSQL builds a parameterized WHERE-clause fragment
// restricting rows to this context's Access Scope, for capability
// servers executing SQL directly. tableAlias, if non-empty, is
// prefixed to the account_id/owner_email columns. placeholder renders
// the Nth bind placeholder for the target SQL dialect (e.g.
// capsrv.BindPlaceholder), and startIdx is the first placeholder index
// to use (1 for a query with no other bind args).
//
// An admin or an all-entities scope gets "1=1" (no filtering). A
// scope with neither entity ids nor OwnedOnly set gets "1=0" — no
// access, rather than silently returning every row.
func (c Context) AccountFilterSQL(tableAlias string, placeholder func(n int) string, startIdx int) (clause string, args []any) {
	if c.Admin || c.Scope.AllEntities {
		return "1=1", nil
	}

	prefix := ""
	if tableAlias != "" {
		prefix = tableAlias + "."
	}

	idx := startIdx
	var parts []string

	if ids := c.Scope.EntityIDList(); len(ids) > 0 {
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = placeholder(idx)
			args = append(args, id)
			idx++
		}
		parts = append(parts, fmt.Sprintf("%saccount_id IN (%s)", prefix, strings.Join(placeholders, ", ")))
	}

	if c.Scope.OwnedOnly {
		parts = append(parts, fmt.Sprintf("%sowner_email = %s", prefix, placeholder(idx)))
		args = append(args, c.CallerID)
		idx++
	}

	if len(parts) == 0 {
		return "1=0", nil
	}
	return strings.Join(parts, " AND "), args
}
