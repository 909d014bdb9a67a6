package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	GeminiName         = "gemini"
	geminiDefaultModel = "gemini-2.5-flash"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	RPM          int          // Requests per minute (default: 15, the free-tier ceiling)
	BaseURL      string       // Optional (tests)
	HTTPClient   *http.Client // Optional (tests)
}

// GeminiClient implements LLMClient using the Google GenAI SDK.
type GeminiClient struct {
	apiKey       string
	defaultModel string
	rpm          int
	client       *genai.Client
	limiter      *RateLimiter
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = geminiDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 15
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		client:       client,
		limiter:      NewRateLimiter(cfg.RPM),
	}, nil
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Chat sends one GenerateContent request. System messages become the system
// instruction; assistant messages are sent with the model role.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	config := &genai.GenerateContentConfig{}
	temperature := float32(req.Temperature)
	config.Temperature = &temperature
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if rf := req.ResponseFormat; rf != nil && rf.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = geminiSchema(rf.Schema)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		err = mapGeminiError(err)
		if pe, ok := AsError(err); ok && pe.Class == ClassRateLimited {
			c.limiter.Record429(pe.RetryAfter)
		}
		return nil, err
	}

	resp := geminiResponse(result)
	resp.ModelUsed = model
	resp.ExecutionTime = time.Since(start)
	return resp, nil
}

// geminiResponse copies the SDK response into the envelope. The direct text
// field is left to resp.Text(), which already skips thought parts.
func geminiResponse(result *genai.GenerateContentResponse) *Response {
	resp := &Response{Provider: GeminiName}
	if result == nil {
		return resp
	}
	if len(result.Candidates) > 0 {
		resp.Text = result.Text()
	}
	for _, cand := range result.Candidates {
		if cand == nil {
			continue
		}
		out := Candidate{FinishReason: string(cand.FinishReason)}
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				if p == nil || p.Text == "" {
					continue
				}
				out.Parts = append(out.Parts, Part{Text: p.Text, Thought: p.Thought})
			}
		}
		resp.Candidates = append(resp.Candidates, out)
	}
	if u := result.UsageMetadata; u != nil {
		resp.PromptTokens = int(u.PromptTokenCount)
		resp.CompletionTokens = int(u.CandidatesTokenCount)
		resp.TotalTokens = int(u.TotalTokenCount)
	}
	return resp
}

// geminiAPIError finds a genai.APIError in err's chain, by value or pointer.
func geminiAPIError(err error) (genai.APIError, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch x := any(e).(type) {
		case genai.APIError:
			return x, true
		case *genai.APIError:
			if x != nil {
				return *x, true
			}
		}
	}
	return genai.APIError{}, false
}

// mapGeminiError converts SDK errors into *Error.
func mapGeminiError(err error) error {
	apiErr, ok := geminiAPIError(err)
	if !ok {
		return fmt.Errorf("gemini request failed: %w", err)
	}
	msg := apiErr.Message
	if apiErr.Status != "" {
		msg = fmt.Sprintf("%s: %s", apiErr.Status, msg)
	}
	// Retry hints arrive in the RetryInfo detail rather than a header.
	for _, d := range apiErr.Details {
		if delay, ok := d["retryDelay"].(string); ok {
			msg += fmt.Sprintf(" (retryDelay: %q)", delay)
		}
	}
	return NewError(GeminiName, apiErr.Code, msg, nil)
}

// geminiSchema converts a JSON schema map into the SDK's schema type.
func geminiSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}
	switch t, _ := m["type"].(string); t {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = geminiSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = geminiSchema(items)
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if v, ok := toFloat(m["minimum"]); ok {
		s.Minimum = &v
	}
	if v, ok := toFloat(m["maximum"]); ok {
		s.Maximum = &v
	}
	return s
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

var _ LLMClient = (*GeminiClient)(nil)
