package server

import "github.com/corebridge/agentcore/pkg/orchestrator"

// chatRequest is the public inbound request shape (spec.md §6).
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Token     string `json:"token,omitempty"`
}

// chatResponse is the public outbound response shape (spec.md §6). It
// is always returned with 200 once the request reaches the loop;
// transport-level 5xx is reserved for unhandled defects, per spec.md's
// "exit conditions of the public endpoint".
type chatResponse struct {
	SessionID         string                         `json:"session_id"`
	TurnID            int                            `json:"turn_id"`
	AssistantMessage  string                         `json:"assistant_message"`
	ExecutionMetadata orchestrator.ExecutionMetadata `json:"execution_metadata"`
	FinalAnswer       bool                           `json:"final_answer"`
}

func toChatResponse(res orchestrator.Result) chatResponse {
	return chatResponse{
		SessionID:         res.SessionID,
		TurnID:            res.TurnID,
		AssistantMessage:  res.AssistantMessage,
		ExecutionMetadata: res.ExecutionMetadata,
		FinalAnswer:       res.FinalAnswer,
	}
}

// errorResponse is the body of the server's own error replies: a
// malformed or message-less request body, and an orchestration
// failure reported as an internal error.
type errorResponse struct {
	Error string `json:"error"`
}
