package capsrv

import (
	"fmt"
	"strings"
)

// CheckBlocklist re-applies the dangerous-statement check server-side
// (spec.md §4.11 C11), independently of whatever filtering the
// orchestrator already did client-side. A capability server must
// never trust that a caller-supplied query already passed that check.
func CheckBlocklist(query string, patterns []string) (blocked bool, reason string) {
	lowered := strings.ToLower(query)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(p)) {
			return true, fmt.Sprintf("query matches blocked pattern %q", p)
		}
	}
	return false, ""
}

// DefaultDangerousPatterns is a reasonable statement blocklist for a
// SQL-backed example server run without an explicit override; real
// deployments are expected to supply their own via configuration.
var DefaultDangerousPatterns = []string{
	"drop table", "drop database", "truncate", "delete from", "alter table",
	"insert into", "update ", "grant ", "revoke ", "exec ", "execute ",
	"--", ";--", "xp_cmdshell",
}
