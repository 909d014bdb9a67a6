package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LLMClient is a text generation backend.
type LLMClient interface {
	// Chat sends one generation request. Implementations make a single attempt;
	// retries and fallback belong to the caller.
	Chat(ctx context.Context, req *ChatRequest) (*Response, error)

	// Name returns the client identifier (e.g., "openrouter").
	Name() string
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`

	// Schema is the decoded inner JSON schema, for clients that need a native form.
	Schema map[string]any `json:"-"`
}

// NewResponseFormat converts a {"type":"json_schema","json_schema":{...}} hint.
// A nil schema yields a nil format.
func NewResponseFormat(schema map[string]any) (*ResponseFormat, error) {
	if schema == nil {
		return nil, nil
	}
	typ, _ := schema["type"].(string)
	if typ == "" {
		typ = "json_schema"
	}
	envelope, ok := schema["json_schema"].(map[string]any)
	if !ok {
		envelope = map[string]any{"name": "response", "schema": schema}
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response schema: %w", err)
	}
	inner, _ := envelope["schema"].(map[string]any)
	return &ResponseFormat{Type: typ, JSONSchema: raw, Schema: inner}, nil
}

// Name returns the schema name from the envelope, or "response".
func (f *ResponseFormat) Name() string {
	var env struct {
		Name string `json:"name"`
	}
	if f == nil || json.Unmarshal(f.JSONSchema, &env) != nil || env.Name == "" {
		return "response"
	}
	return env.Name
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	// Required
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
	Attempt   int    `json:"-"` // 1-based attempt number on this backend
}

// Part is one text-bearing piece of a response.
type Part struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

// Candidate is one alternative completion.
type Candidate struct {
	Text         string `json:"text,omitempty"`
	Parts        []Part `json:"parts,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Response is the raw envelope returned by a backend. Clients fill whichever
// fields their wire format carries; ExtractText reads them in a fixed order.
type Response struct {
	Text       string      `json:"text,omitempty"`
	Parts      []Part      `json:"parts,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`
}
