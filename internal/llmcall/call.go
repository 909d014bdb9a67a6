// Package llmcall provides LLM call recording and querying for traceability.
// Every generation attempt is recorded with its task label, outcome, and metrics.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/quire/internal/providers"
)

// Call represents one recorded generation attempt.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	JobID string `json:"job_id,omitempty"`
	Label string `json:"label"` // task label, e.g. "chapters 16-30"

	// Backend info
	Backend     string  `json:"backend"`
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Attempt     int     `json:"attempt"`
	Temperature float64 `json:"temperature,omitempty"`

	// Token usage
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd,omitempty"`

	// Response
	Response string `json:"response,omitempty"`

	// Status
	Outcome string `json:"outcome"` // success, empty, rate_limited, transient, exhausted
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording a call.
type RecordOptions struct {
	JobID       string
	Label       string
	Backend     string
	Model       string
	Attempt     int
	Temperature float64
	Outcome     string
	Latency     time.Duration
}

// FromResponse creates a Call from a provider response and the error, if any.
// resp may be nil when the call failed.
func FromResponse(resp *providers.Response, err error, opts RecordOptions) *Call {
	call := &Call{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		LatencyMs:   int(opts.Latency.Milliseconds()),
		JobID:       opts.JobID,
		Label:       opts.Label,
		Backend:     opts.Backend,
		Model:       opts.Model,
		Attempt:     opts.Attempt,
		Temperature: opts.Temperature,
		Outcome:     opts.Outcome,
	}
	if resp != nil {
		call.Provider = resp.Provider
		if resp.ModelUsed != "" {
			call.Model = resp.ModelUsed
		}
		call.InputTokens = resp.PromptTokens
		call.OutputTokens = resp.CompletionTokens
		call.CostUSD = resp.CostUSD
		call.Response = providers.ExtractText(resp)
		if call.LatencyMs == 0 {
			call.LatencyMs = int(resp.ExecutionTime.Milliseconds())
		}
	}
	if err != nil {
		call.Error = err.Error()
	}
	call.Success = err == nil && call.Response != ""
	return call
}
