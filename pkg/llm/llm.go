// Package llm implements C5, the Chat Client: a thin, non-streaming
// wrapper over an Anthropic-style tool-calling chat completion API.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corebridge/agentcore/pkg/httpclient"
)

// Message is one turn of conversation handed to the model. Content
// carries either plain text or, for tool-result turns, a
// []ContentBlock encoding prior tool outputs.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentBlock is one block of a structured message, covering text,
// tool_use (the model's request to call a tool), and tool_result
// (this process feeding a tool's output back to the model).
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// ToolDefinition describes one namespaced tool available this round,
// in the JSON-schema shape the chat API expects.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is a model-requested invocation, with its raw protocol id
// passed through unmodified so the dispatch round can correlate the
// eventual tool_result back to it (spec.md §4.5).
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Reply is the model's response for one round: any prose it produced
// plus zero or more tool calls it is requesting.
type Reply struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	TokensUsed int
}

// Client talks to a single chat-completion provider.
type Client struct {
	model      string
	apiKey     string
	host       string
	maxTokens  int
	httpClient *httpclient.Client
}

// Config configures a Client.
type Config struct {
	Model      string
	APIKey     string
	Host       string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// NewClient builds a Client. Host defaults to Anthropic's API origin
// when empty, matching the teacher's AnthropicProvider default.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.Host == "" {
		cfg.Host = "https://api.anthropic.com"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &Client{
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		host:      cfg.Host,
		maxTokens: cfg.MaxTokens,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(2*time.Second),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
		),
	}, nil
}

type wireRequest struct {
	Model     string           `json:"model"`
	Messages  []Message        `json:"messages"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system,omitempty"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
}

type wireResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// MalformedResponseError is returned when the provider's reply cannot
// be parsed into a Reply (spec.md §4.5 "typed error on malformed responses").
type MalformedResponseError struct {
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("llm: malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Complete sends one round of conversation plus the tools available
// this round and returns the model's reply (spec.md §4.5 `complete`).
func (c *Client) Complete(systemPrompt string, messages []Message, tools []ToolDefinition) (*Reply, error) {
	req := wireRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Tools:     tools,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.host+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, &MalformedResponseError{Body: string(respBody), Err: err}
	}
	if wire.Error != nil {
		return nil, fmt.Errorf("llm: provider error: %s", wire.Error.Message)
	}

	reply := &Reply{
		StopReason: wire.StopReason,
		TokensUsed: wire.Usage.InputTokens + wire.Usage.OutputTokens,
	}
	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			reply.Text += block.Text
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					// Tolerant parsing: spec.md §4.6 requires the dispatch
					// round to proceed with an empty argument set rather
					// than fail the whole round over one bad tool call.
					args = map[string]any{}
				}
			}
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			})
		}
	}

	return reply, nil
}
