// Package orchestrator implements C6, the Orchestration Loop, and
// C11, the Safety/Budget Filters: the state machine that turns a user
// message into a final assistant answer by interleaving LLM reasoning
// with bounded, parallel capability tool dispatch.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/corebridge/agentcore/pkg/capability"
	"github.com/corebridge/agentcore/pkg/llm"
	"github.com/corebridge/agentcore/pkg/rbac"
	"github.com/corebridge/agentcore/pkg/registry"
	"github.com/corebridge/agentcore/pkg/resolver"
)

// ConversationStore is the subset of C9 the loop depends on.
type ConversationStore interface {
	CreateSession(ctx context.Context, rbacCtx rbac.Context) (string, error)
	RecentTurns(ctx context.Context, sessionID string, n int) ([]Turn, error)
	AppendTurn(ctx context.Context, sessionID string, turn Turn) (int, error)
}

const apologyTimeout = "I wasn't able to finish working through this within the allotted rounds. Here is what I found so far; please try narrowing the question."
const apologyTransport = "I ran into a problem reaching the language model and can't complete this request right now."
const apologyEmptyPlan = "I wasn't able to come up with a next step for this request."

// Config tunes one Orchestrator instance from spec.md §6.
type Config struct {
	MaxRounds             int
	MaxParallelToolCalls  int
	HistoryTurnsInContext int
	DangerousPatterns     []string
	TokenBudgetChars      int
	// SystemPrompt is a convenience fallback: when Prompt is nil, it is
	// wrapped as a StaticPrompt. Set Prompt directly for a reloadable
	// (e.g. config-file-backed) system prompt.
	SystemPrompt string
	Prompt       PromptProvider
}

// Orchestrator runs the C6 state machine for individual requests. It
// holds no per-request mutable state; everything request-scoped lives
// in a run.
type Orchestrator struct {
	cfg      Config
	registry *registry.CapabilityRegistry
	loader   *capability.Loader
	llm      *llm.Client
	store    ConversationStore
	safety   *SafetyFilters
	metrics  *Metrics
	resolver *resolver.Resolver
}

// New builds an Orchestrator. promReg is the Prometheus registerer to
// report round/tool-call instruments against; a nil registerer is
// valid and leaves metrics collection disabled. res is the C7 Account
// Resolver used to rewrite accounts_mentioned before dispatch; a nil
// Resolver leaves that argument untouched (spec.md §4.7 is optional to
// a deployment with no resolvable entity corpus).
func New(cfg Config, reg *registry.CapabilityRegistry, loader *capability.Loader, chat *llm.Client, store ConversationStore, res *resolver.Resolver, promReg prometheus.Registerer) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 8
	}
	if cfg.MaxParallelToolCalls <= 0 {
		cfg.MaxParallelToolCalls = 4
	}
	if cfg.HistoryTurnsInContext <= 0 {
		cfg.HistoryTurnsInContext = 5
	}
	if cfg.TokenBudgetChars <= 0 {
		cfg.TokenBudgetChars = 16000
	}
	if cfg.Prompt == nil {
		cfg.Prompt = StaticPrompt(cfg.SystemPrompt)
	}
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		loader:   loader,
		llm:      chat,
		store:    store,
		safety:   NewSafetyFilters(cfg.DangerousPatterns, cfg.TokenBudgetChars),
		metrics:  NewMetrics(promReg),
		resolver: res,
	}
}

// run carries per-request mutable state; a fresh run is built for
// every call to Handle.
type run struct {
	req            Request
	messages       []llm.Message
	toolsByName    map[string]capability.Tool
	toolDefs       []llm.ToolDefinition
	records        []ExecutionRecord
	pendingCalls   []ToolCall
	round          int
}

// Handle drives one request through DISCOVER -> PLAN -> (DISPATCH ->
// INJECT)* -> DONE|FAILED|TIMEOUT (spec.md §4.6).
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Result, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		var err error
		sessionID, err = o.store.CreateSession(ctx, req.RBAC)
		if err != nil {
			slog.Warn("orchestrator: create session failed, proceeding without persistence", "error", err)
		}
	}

	accessible := o.registry.AccessibleNames(req.RBAC.Roles)
	if len(accessible) == 0 {
		msg := "You don't currently have access to any data sources that could answer this question."
		turnID := o.persist(ctx, &run{req: req}, sessionID, msg)
		return Result{
			Success:          true,
			AssistantMessage: msg,
			FinalAnswer:      true,
			SessionID:        sessionID,
			TurnID:           turnID,
			ExecutionMetadata: ExecutionMetadata{
				Rounds: 0,
				Reason: "no_accessible_capabilities",
			},
		}, nil
	}

	r := &run{req: req}
	state := StateDiscover
	var finishReason string

	for {
		switch state {
		case StateDiscover:
			if err := o.discover(ctx, r, accessible); err != nil {
				return o.failedResult(sessionID, err.Error()), nil
			}
			state = StatePlan

		case StatePlan:
			r.round++
			if r.round > o.cfg.MaxRounds {
				// This PLAN entry never happened: the previous round
				// already exhausted the budget without reaching DONE.
				r.round--
				state = StateTimeout
				continue
			}
			o.metrics.observeRound()
			roundCtx, span := startRoundSpan(ctx, r.round)
			reply, err := o.plan(roundCtx, r)
			span.End()
			if err != nil {
				finishReason = err.Error()
				state = StateFailed
				continue
			}
			switch {
			case len(reply.ToolCalls) == 0 && strings.TrimSpace(reply.Text) != "":
				r.messages = append(r.messages, llm.Message{Role: "assistant", Content: reply.Text})
				o.metrics.observeOutcome(StateDone)
				return o.doneResult(ctx, r, sessionID, reply.Text), nil
			case len(reply.ToolCalls) > 0:
				o.appendToolCallMessage(r, reply)
				state = StateDispatch
			default:
				finishReason = "empty plan"
				state = StateFailed
			}

		case StateDispatch:
			o.dispatch(ctx, r)
			state = StateInject

		case StateInject:
			r.messages = append(r.messages, llm.Message{
				Role:    "user",
				Content: "Using the tool results above, answer the original question. If you still need more information, call another tool.",
			})
			state = StatePlan

		case StateTimeout:
			o.metrics.observeOutcome(StateTimeout)
			return o.timeoutResult(ctx, r, sessionID), nil

		case StateFailed:
			o.metrics.observeOutcome(StateFailed)
			return o.failedResultWithRecords(sessionID, finishReason, r.records), nil
		}
	}
}

func (o *Orchestrator) discover(ctx context.Context, r *run, accessible []string) error {
	r.toolsByName = map[string]capability.Tool{}

	type discovered struct {
		capability string
		names      []string
		tools      map[string]capability.Tool
		err        error
	}
	results := make([]discovered, len(accessible))

	var wg sync.WaitGroup
	for i, name := range accessible {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			names, tools, err := o.loader.Load(ctx, name, r.req.RBAC.CallerID, r.req.RBAC.TenantID, r.req.RBAC.Roles, 30)
			results[i] = discovered{capability: name, names: names, tools: tools, err: err}
		}(i, name)
	}
	wg.Wait()

	for _, res := range results {
		if res.err != nil {
			// tool_discovery_failed (spec.md §7): partial, drop this
			// capability's tools from the request, log, continue.
			slog.Warn("orchestrator: tool discovery failed", "capability", res.capability, "error", res.err)
			continue
		}
		for _, prefixed := range res.names {
			r.toolsByName[prefixed] = res.tools[prefixed]
		}
	}

	defs := make([]llm.ToolDefinition, 0, len(r.toolsByName))
	names := make([]string, 0, len(r.toolsByName))
	for name := range r.toolsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := r.toolsByName[name]
		defs = append(defs, llm.ToolDefinition{Name: name, Description: t.Description, InputSchema: t.InputSchema})
	}
	r.toolDefs = defs

	history, err := o.store.RecentTurns(ctx, r.req.SessionID, o.cfg.HistoryTurnsInContext)
	if err != nil {
		slog.Warn("orchestrator: recent turns lookup failed, continuing without history", "error", err)
		history = nil
	}

	r.messages = make([]llm.Message, 0, len(history)*2+1)
	for _, t := range history {
		r.messages = append(r.messages, llm.Message{Role: "user", Content: t.UserMessage})
		r.messages = append(r.messages, llm.Message{Role: "assistant", Content: t.AssistantMessage})
	}
	r.messages = append(r.messages, llm.Message{Role: "user", Content: r.req.Message})
	return nil
}

func (o *Orchestrator) plan(ctx context.Context, r *run) (*llm.Reply, error) {
	reply, err := o.llm.Complete(o.cfg.Prompt.SystemPrompt(), r.messages, r.toolDefs)
	if err != nil {
		return nil, fmt.Errorf("llm_transport_failed: %w", err)
	}
	return reply, nil
}

func (o *Orchestrator) appendToolCallMessage(r *run, reply *llm.Reply) {
	r.pendingCalls = toolCallsFromReply(reply)

	blocks := make([]llm.ContentBlock, 0, len(r.pendingCalls)+1)
	if strings.TrimSpace(reply.Text) != "" {
		blocks = append(blocks, llm.ContentBlock{Type: "text", Text: reply.Text})
	}
	for _, call := range r.pendingCalls {
		input, _ := json.Marshal(call.Arguments)
		blocks = append(blocks, llm.ContentBlock{Type: "tool_use", ID: call.CallID, Name: call.PrefixedName, Input: input})
	}
	r.messages = append(r.messages, llm.Message{Role: "assistant", Content: blocks})
}

func toolCallsFromReply(reply *llm.Reply) []ToolCall {
	out := make([]ToolCall, 0, len(reply.ToolCalls))
	for _, tc := range reply.ToolCalls {
		id := tc.ID
		if id == "" {
			// Some models omit the tool_use id on malformed replies;
			// mint one so Execution Records still key uniquely.
			id = uuid.NewString()
		}
		out = append(out, ToolCall{CallID: id, PrefixedName: tc.Name, Arguments: tc.Args})
	}
	return out
}

// dispatch executes r.pendingCalls in parallel, bounded by
// MaxParallelToolCalls, preserving original order in the results
// (spec.md §4.6 "Tool dispatch ordering").
func (o *Orchestrator) dispatch(ctx context.Context, r *run) {
	calls := r.pendingCalls
	truncated := o.safety.ApplyTokenBudget(calls)

	records := make([]ExecutionRecord, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, o.cfg.MaxParallelToolCalls)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			records[i] = o.dispatchOne(gctx, r, call)
			records[i].Truncated = truncated[i]
			o.metrics.observeToolCall(records[i])
			return nil
		})
	}
	_ = g.Wait()

	r.records = append(r.records, records...)
	r.messages = append(r.messages, llm.Message{Role: "assistant", Content: summarize(records)})
	r.pendingCalls = nil
}

func (o *Orchestrator) dispatchOne(ctx context.Context, r *run, call ToolCall) ExecutionRecord {
	start := time.Now()

	capName, toolName, ok := capability.Split(call.PrefixedName)
	if !ok {
		slog.Warn("orchestrator: dispatch skipped, no separator in tool name", "tool", call.PrefixedName)
		return ExecutionRecord{Tool: call.PrefixedName, Success: false, Reason: "unknown_tool", Duration: time.Since(start)}
	}
	if _, known := r.toolsByName[call.PrefixedName]; !known {
		slog.Warn("orchestrator: dispatch skipped, tool not in reverse map", "tool", call.PrefixedName)
		return ExecutionRecord{Capability: capName, Tool: toolName, Success: false, Reason: "unknown_tool", Duration: time.Since(start)}
	}

	args := o.resolveAccountMentions(call.Arguments, r.req.RBAC)

	if blocked, reason := o.safety.CheckBlocklist(args); blocked {
		return ExecutionRecord{Capability: capName, Tool: toolName, Success: false, Reason: ErrUnsafePayload, Error: reason, Duration: time.Since(start)}
	}

	client := o.loader.Client(capName)
	if client == nil {
		return ExecutionRecord{Capability: capName, Tool: toolName, Success: false, Reason: "capability_unavailable", Duration: time.Since(start)}
	}

	result, err := client.CallTool(ctx, toolName, withRBACEnvelope(args, r.req.RBAC))
	if err != nil {
		return ExecutionRecord{Capability: capName, Tool: toolName, Success: false, Error: err.Error(), Duration: time.Since(start)}
	}
	if capability.SchemaMismatch(result) {
		// The server's tool schema moved since discovery; drop the
		// cached definitions so the next round's discover() re-lists
		// them instead of repeating the same stale call.
		slog.Warn("orchestrator: schema mismatch, refreshing capability cache", "capability", capName, "tool", toolName)
		o.loader.Refresh(capName)
	}

	return recordFromResult(capName, toolName, result, start)
}

// withRBACEnvelope attaches the RBAC Context to the outbound call
// arguments, matching the call_tool wire shape of spec.md §6. The
// capability server, not the orchestrator, trusts this field over any
// caller-supplied identity hints in the arguments themselves.
func withRBACEnvelope(args map[string]any, ctx rbac.Context) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out["rbac_context"] = map[string]any{
		"caller_id":    ctx.CallerID,
		"tenant_id":    ctx.TenantID,
		"roles":        ctx.Roles,
		"object_id":    ctx.ObjectID,
		"admin":        ctx.Admin,
		"access_scope": ctx.Scope,
	}
	return out
}

func recordFromResult(capName, toolName string, result map[string]any, start time.Time) ExecutionRecord {
	rec := ExecutionRecord{Capability: capName, Tool: toolName, Duration: time.Since(start)}
	if errMsg, ok := result["error"]; ok {
		rec.Success = false
		rec.Error = fmt.Sprintf("%v", errMsg)
		return rec
	}
	rec.Success = true
	if n, ok := result["row_count"].(float64); ok {
		rec.RowCount = int(n)
	}
	rows, ok := result["sample_rows"].([]any)
	if !ok {
		// Older or hand-rolled capability servers may only set data;
		// fall back so their rows still reach the summary.
		rows, _ = result["data"].([]any)
	}
	for _, row := range rows {
		if m, ok := row.(map[string]any); ok {
			rec.SampleRows = append(rec.SampleRows, m)
		}
	}
	return rec
}

// summarize renders Execution Records as the free-text Markdown-like
// structure the LLM sees as the only view of tool outputs (spec.md
// §4.6 "Results summary format").
func summarize(records []ExecutionRecord) string {
	var b strings.Builder
	b.WriteString("Tool results:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s.%s: success=%t rows=%d", r.Capability, r.Tool, r.Success, r.RowCount)
		if r.Error != "" {
			fmt.Fprintf(&b, " error=%q", r.Error)
		}
		if r.Reason != "" {
			fmt.Fprintf(&b, " reason=%q", r.Reason)
		}
		b.WriteString("\n")
		for i, row := range r.SampleRows {
			if i >= 3 {
				b.WriteString("  ...\n")
				break
			}
			fmt.Fprintf(&b, "  %v\n", row)
		}
	}
	return b.String()
}

func (o *Orchestrator) doneResult(ctx context.Context, r *run, sessionID, text string) Result {
	turnID := o.persist(ctx, r, sessionID, text)
	return Result{
		Success:          true,
		AssistantMessage: text,
		FinalAnswer:      true,
		SessionID:        sessionID,
		TurnID:           turnID,
		Records:          r.records,
		ExecutionMetadata: ExecutionMetadata{
			Rounds:         r.round,
			TotalToolCalls: len(r.records),
			FinalRound:     true,
		},
	}
}

func (o *Orchestrator) timeoutResult(ctx context.Context, r *run, sessionID string) Result {
	// spec.md §9 open question: partial rounds are not persisted.
	return Result{
		Success:          false,
		AssistantMessage: apologyTimeout,
		FinalAnswer:      false,
		SessionID:        sessionID,
		Records:          r.records,
		ExecutionMetadata: ExecutionMetadata{
			Rounds:         r.round,
			TotalToolCalls: len(r.records),
			FinalRound:     false,
			Reason:         "timeout",
		},
	}
}

func (o *Orchestrator) failedResult(sessionID, reason string) Result {
	msg := apologyTransport
	if reason == "empty plan" {
		msg = apologyEmptyPlan
	}
	return Result{
		Success:          false,
		AssistantMessage: msg,
		FinalAnswer:      false,
		SessionID:        sessionID,
		ExecutionMetadata: ExecutionMetadata{Reason: reason},
	}
}

func (o *Orchestrator) failedResultWithRecords(sessionID, reason string, records []ExecutionRecord) Result {
	res := o.failedResult(sessionID, reason)
	res.Records = records
	res.ExecutionMetadata.TotalToolCalls = len(records)
	return res
}

// persist appends one Turn for the request carried by r and returns
// the turn number the store assigned it, or 0 if nothing was
// persisted (no session, or the append failed).
func (o *Orchestrator) persist(ctx context.Context, r *run, sessionID, assistantMessage string) int {
	if sessionID == "" {
		return 0
	}
	turn := Turn{
		UserMessage:      r.req.Message,
		AssistantMessage: assistantMessage,
		Records:          r.records,
	}
	turnNumber, err := o.store.AppendTurn(ctx, sessionID, turn)
	if err != nil {
		// persistence_failed (spec.md §7): the answer still returns to
		// the caller; the Turn is not persisted.
		slog.Warn("orchestrator: append turn failed, answer returned without persistence", "session_id", sessionID, "error", err)
		return 0
	}
	return turnNumber
}
