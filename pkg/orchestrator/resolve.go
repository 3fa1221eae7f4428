package orchestrator

import (
	"log/slog"

	"github.com/corebridge/agentcore/pkg/rbac"
)

// resolveAccountMentions rewrites a tool call's accounts_mentioned
// argument from free text into canonical ids, via C7, before the call
// ever reaches a capability server (spec.md §4.7: "map free-text
// entity mentions... into canonical IDs before the calling capability
// server builds a filter"). A mention with neither a confident match
// nor exactly one accessible candidate is dropped rather than passed
// through as raw text — the capability
// server only ever sees ids it can apply to an RBAC Context, so an
// unresolved mention degrades to "no accessible data" downstream
// instead of leaking a free-text value into a query.
//
// o.resolver may be nil, in which case accounts_mentioned is left
// untouched; callers that never configure a Resolver get the old
// pass-through behavior.
func (o *Orchestrator) resolveAccountMentions(args map[string]any, rbacCtx rbac.Context) map[string]any {
	if o.resolver == nil {
		return args
	}
	raw, ok := args["accounts_mentioned"].([]any)
	if !ok || len(raw) == 0 {
		return args
	}

	resolved := make([]string, 0, len(raw))
	for _, v := range raw {
		mention, ok := v.(string)
		if !ok || mention == "" {
			continue
		}
		result := o.resolver.Resolve(mention, rbacCtx)
		switch {
		case result.Confident:
			resolved = append(resolved, result.Match.EntityID)
		case len(result.Candidates) == 1:
			// A single surviving candidate below the confidence floor
			// is still the caller's best and only accessible guess.
			resolved = append(resolved, result.Candidates[0].EntityID)
		default:
			slog.Debug("orchestrator: account mention did not resolve", "mention", mention, "candidates", len(result.Candidates))
		}
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	out["accounts_mentioned"] = resolved
	return out
}
