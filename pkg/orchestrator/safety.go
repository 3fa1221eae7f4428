package orchestrator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ErrUnsafePayload is the typed rejection reason for a tool call whose
// arguments match a configured dangerous-statement pattern (spec.md
// §4.11).
const ErrUnsafePayload = "unsafe_payload"

// Filter is one named, rejectable check in the pre-dispatch chain.
// Generalizes the original invocation-filters chain: named filters
// run in declared order, and the first rejection wins.
type Filter interface {
	Name() string
	Check(args map[string]any) (blocked bool, reason string)
}

// blocklistFilter rejects any string argument matching a configured
// dangerous-pattern list, case-insensitively.
type blocklistFilter struct {
	patterns []string
}

func (f *blocklistFilter) Name() string { return "statement_blocklist" }

func (f *blocklistFilter) Check(args map[string]any) (bool, string) {
	for key, v := range args {
		s, ok := v.(string)
		if !ok {
			continue
		}
		lowered := strings.ToLower(s)
		for _, pattern := range f.patterns {
			if pattern != "" && strings.Contains(lowered, pattern) {
				return true, fmt.Sprintf("argument %q matches blocked pattern %q", key, pattern)
			}
		}
	}
	return false, ""
}

// SafetyFilters is the pre-dispatch check chain (C11). Filters run in
// declared order; a rejection prevents dispatch of only the offending
// call, never the whole round.
type SafetyFilters struct {
	filters          []Filter
	tokenBudgetChars int
}

// NewSafetyFilters builds the filter chain from configuration.
// dangerousPatterns are matched case-insensitively as substrings.
func NewSafetyFilters(dangerousPatterns []string, tokenBudgetChars int) *SafetyFilters {
	lowered := make([]string, len(dangerousPatterns))
	for i, p := range dangerousPatterns {
		lowered[i] = strings.ToLower(p)
	}
	return &SafetyFilters{
		filters:          []Filter{&blocklistFilter{patterns: lowered}},
		tokenBudgetChars: tokenBudgetChars,
	}
}

// CheckBlocklist runs the named filter chain in declared order against
// one call's arguments. The first rejection wins; its filter name is
// folded into the returned reason.
func (f *SafetyFilters) CheckBlocklist(args map[string]any) (blocked bool, reason string) {
	for _, filter := range f.filters {
		if blocked, reason := filter.Check(args); blocked {
			return true, fmt.Sprintf("%s: %s", filter.Name(), reason)
		}
	}
	return false, ""
}

// ApplyTokenBudget estimates total argument size across every pending
// call this turn in cl100k_base tokens (chars/4 when that encoding
// cannot be loaded) and, while the total exceeds the configured
// ceiling, halves the largest not-yet-truncated string argument across
// all calls and appends an explicit marker. It returns the set of
// call indices it truncated, for Execution Record bookkeeping.
func (f *SafetyFilters) ApplyTokenBudget(calls []ToolCall) (truncatedCallIndices map[int]bool) {
	truncatedCallIndices = map[int]bool{}
	if f.tokenBudgetChars <= 0 {
		return truncatedCallIndices
	}

	total := 0
	for _, c := range calls {
		total += estimateArgTokens(c.Arguments)
	}
	if total <= f.tokenBudgetChars {
		return truncatedCallIndices
	}

	for total > f.tokenBudgetChars {
		callIdx, argKey, argLen := largestStringArg(calls)
		if callIdx < 0 {
			break
		}
		s := calls[callIdx].Arguments[argKey].(string)
		keep := argLen / 2
		if keep < 1 {
			keep = 1
		}
		truncated := s[:keep] + "...[truncated]"
		calls[callIdx].Arguments[argKey] = truncated
		truncatedCallIndices[callIdx] = true
		total -= countTokens(s) - countTokens(truncated)
	}
	return truncatedCallIndices
}

var (
	budgetEncodingOnce sync.Once
	budgetEncoding     *tiktoken.Tiktoken
)

// tokenEncoding lazily initializes a shared cl100k_base encoding for
// token-budget estimation (spec.md §4.11 token budget). A nil return
// falls back to the chars/4 heuristic; this only happens if the
// tiktoken vocabulary data can't be loaded, which never blocks
// dispatch on its own.
func tokenEncoding() *tiktoken.Tiktoken {
	budgetEncodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			budgetEncoding = enc
		}
	})
	return budgetEncoding
}

func countTokens(s string) int {
	if enc := tokenEncoding(); enc != nil {
		return len(enc.Encode(s, nil, nil))
	}
	return len(s) / 4
}

func estimateArgTokens(args map[string]any) int {
	total := 0
	for _, v := range args {
		if s, ok := v.(string); ok {
			total += countTokens(s)
		}
	}
	return total
}

func largestStringArg(calls []ToolCall) (callIdx int, argKey string, length int) {
	callIdx = -1
	for i, c := range calls {
		for k, v := range c.Arguments {
			s, ok := v.(string)
			if !ok || strings.HasSuffix(s, "...[truncated]") {
				continue
			}
			if len(s) > length {
				callIdx, argKey, length = i, k, len(s)
			}
		}
	}
	return callIdx, argKey, length
}
