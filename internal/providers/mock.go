package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockStep is one scripted reply. Err takes precedence over Text.
type MockStep struct {
	Text    string
	Err     error
	Latency time.Duration
}

// MockHandler answers a request when the script is exhausted.
type MockHandler func(ctx context.Context, req *ChatRequest) (*Response, error)

// MockClient is an LLMClient for tests and dry runs. Replies come from the
// scripted queue first, then from Handler, then from ResponseText.
type MockClient struct {
	// Configurable behavior
	ClientName   string
	Latency      time.Duration
	ResponseText string
	Handler      MockHandler

	mu       sync.Mutex
	steps    []MockStep
	requests []ChatRequest

	// State
	requestCount atomic.Int64
}

// NewMockClient creates a mock client. An empty name defaults to "mock".
func NewMockClient(name string) *MockClient {
	if name == "" {
		name = MockClientName
	}
	return &MockClient{
		ClientName:   name,
		ResponseText: "mock response",
	}
}

// NewDryRunClient returns a mock that fabricates plausible output for any
// request, so the whole pipeline can run without network access.
func NewDryRunClient() *MockClient {
	c := NewMockClient(MockClientName)
	c.Handler = DryRunHandler
	return c
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return c.ClientName
}

// Enqueue appends scripted replies.
func (c *MockClient) Enqueue(steps ...MockStep) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, steps...)
	return c
}

// EnqueueText appends one successful reply per text. "" scripts an empty reply.
func (c *MockClient) EnqueueText(texts ...string) *MockClient {
	for _, t := range texts {
		c.Enqueue(MockStep{Text: t})
	}
	return c
}

// Chat answers a request from the script.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	var (
		step   MockStep
		script bool
	)
	if len(c.steps) > 0 {
		step, c.steps = c.steps[0], c.steps[1:]
		script = true
	}
	c.mu.Unlock()

	latency := c.Latency
	if script && step.Latency > 0 {
		latency = step.Latency
	}
	if latency > 0 {
		t := time.NewTimer(latency)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}

	var (
		resp *Response
		err  error
	)
	switch {
	case script && step.Err != nil:
		return nil, step.Err
	case script:
		resp = &Response{Text: step.Text}
	case c.Handler != nil:
		resp, err = c.Handler(ctx, req)
		if err != nil {
			return nil, err
		}
	default:
		resp = &Response{Text: c.ResponseText}
	}

	resp.Provider = c.ClientName
	resp.ModelUsed = req.Model
	resp.RequestID = fmt.Sprintf("%s-%d", c.ClientName, count)
	resp.ExecutionTime = time.Since(start)

	// Simulate token counting
	for _, m := range req.Messages {
		resp.PromptTokens += len(m.Content) / 4 // Rough estimate
	}
	resp.CompletionTokens = len(resp.Text) / 4
	resp.TotalTokens = resp.PromptTokens + resp.CompletionTokens
	return resp, nil
}

// Requests returns copies of the requests received so far.
func (c *MockClient) Requests() []ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset clears the script, the recorded requests and the counter.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = nil
	c.requests = nil
	c.requestCount.Store(0)
}

// DryRunHandler answers structured requests with one record per index in the
// schema's index bounds and free-text requests with a short paragraph.
func DryRunHandler(_ context.Context, req *ChatRequest) (*Response, error) {
	lo, hi, ok := schemaIndexBounds(req.ResponseFormat)
	if !ok {
		return &Response{Text: "Dry run: " + firstLine(lastUserMessage(req), 80)}, nil
	}

	type item struct {
		Index   int    `json:"index"`
		Title   string `json:"title"`
		Content string `json:"content"`
		Hook    string `json:"hook"`
		Payoff  string `json:"payoff"`
	}
	items := make([]item, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		items = append(items, item{
			Index:   i,
			Title:   fmt.Sprintf("Dry run chapter %d", i),
			Content: fmt.Sprintf("Events of chapter %d unfold.", i),
			Hook:    "A question is left open.",
			Payoff:  "none",
		})
	}
	raw, err := json.Marshal(map[string]any{"chapters": items})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dry run records: %w", err)
	}
	return &Response{Text: string(raw)}, nil
}

// schemaIndexBounds reads chapters.items.properties.index minimum/maximum.
func schemaIndexBounds(rf *ResponseFormat) (int, int, bool) {
	if rf == nil || rf.Schema == nil {
		return 0, 0, false
	}
	node := rf.Schema
	for _, key := range []string{"properties", "chapters", "items", "properties", "index"} {
		next, ok := node[key].(map[string]any)
		if !ok {
			return 0, 0, false
		}
		node = next
	}
	lo, okLo := toFloat(node["minimum"])
	hi, okHi := toFloat(node["maximum"])
	if !okLo || !okHi || lo > hi {
		return 0, 0, false
	}
	return int(lo), int(hi), true
}

func lastUserMessage(req *ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func firstLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return s
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
