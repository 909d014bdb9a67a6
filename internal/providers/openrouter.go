package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	RPM          int          // Requests per minute (default: 60)
	HTTPClient   *http.Client // Optional (tests)
}

// OpenRouterClient implements LLMClient using the OpenRouter chat completions API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	rpm          int
	client       *http.Client
	limiter      *RateLimiter
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "google/gemini-2.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 60
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		client:       httpClient,
		limiter:      NewRateLimiter(cfg.RPM),
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Limiter exposes the client's rate limiter.
func (c *OpenRouterClient) Limiter() *RateLimiter {
	return c.limiter
}

// Chat sends a chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	orReq := openRouterRequest{
		Model:       model,
		Messages:    make([]openRouterMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Usage:       &openRouterUsageRequest{Include: true},
	}
	for _, m := range req.Messages {
		orReq.Messages = append(orReq.Messages, openRouterMessage{Role: m.Role, Content: m.Content})
	}
	rf, err := adaptedResponseFormat(model, req.ResponseFormat)
	if err != nil {
		return nil, err
	}
	orReq.ResponseFormat = rf

	// A repeated request gets a nonce so upstream caches don't replay the bad answer.
	if req.Attempt > 1 {
		injectNonce(&orReq, req.Attempt)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	orResp, err := c.doRequest(ctx, "/chat/completions", &orReq)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Provider:         OpenRouterName,
		ModelUsed:        orResp.Model,
		RequestID:        requestID,
		PromptTokens:     orResp.Usage.PromptTokens,
		CompletionTokens: orResp.Usage.CompletionTokens,
		TotalTokens:      orResp.Usage.TotalTokens,
		CostUSD:          orResp.Usage.Cost,
		ExecutionTime:    time.Since(start),
	}
	for _, choice := range orResp.Choices {
		cand := Candidate{FinishReason: choice.FinishReason}
		switch content := choice.Message.Content.(type) {
		case string:
			cand.Text = content
		case []any:
			for _, raw := range content {
				part, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				if text, ok := part["text"].(string); ok {
					cand.Parts = append(cand.Parts, Part{Text: text, Thought: part["type"] == "reasoning"})
				}
			}
		}
		resp.Candidates = append(resp.Candidates, cand)
	}
	return resp, nil
}

// doRequest makes one HTTP request to OpenRouter.
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, body *openRouterRequest) (*openRouterResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/jackzampolin/quire")
	httpReq.Header.Set("X-Title", "Quire")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		pe := NewError(OpenRouterName, httpResp.StatusCode, errorMessage(respBody), httpResp.Header)
		if pe.Class == ClassRateLimited {
			c.limiter.Record429(pe.RetryAfter)
		}
		return nil, pe
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if orResp.Error != nil {
		pe := NewError(OpenRouterName, orResp.Error.status(), orResp.Error.Message, nil)
		if pe.Class == ClassRateLimited {
			c.limiter.Record429(pe.RetryAfter)
		}
		return nil, pe
	}
	return &orResp, nil
}

// errorMessage pulls error.message out of an error body, falling back to the raw body.
func errorMessage(body []byte) string {
	var wrapped struct {
		Error *openRouterError `json:"error"`
	}
	if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		msg := wrapped.Error.Message
		if raw, ok := wrapped.Error.Metadata["raw"].(string); ok && raw != "" {
			msg += ": " + raw
		}
		return msg
	}
	return strings.TrimSpace(string(body))
}

// injectNonce appends a unique comment to the last user message to make the request different.
func injectNonce(req *openRouterRequest, attempt int) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			nonce := uuid.New().String()[:16]
			req.Messages[i].Content += fmt.Sprintf("\n<!-- retry_%d_id: %s -->", attempt, nonce)
			return
		}
	}
}

var _ LLMClient = (*OpenRouterClient)(nil)
