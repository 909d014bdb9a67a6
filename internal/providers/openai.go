package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	RPM          int          // Requests per minute (default: 60)
	BaseURL      string       // Optional (tests, compatible gateways)
	HTTPClient   *http.Client // Optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK.
type OpenAIClient struct {
	apiKey       string
	defaultModel string
	rpm          int
	client       openai.Client
	limiter      *RateLimiter
}

// NewOpenAIClient creates a new OpenAI chat client. SDK-level retries are
// disabled; the invoker owns retry policy.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
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

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		client:       openai.NewClient(opts...),
		limiter:      NewRateLimiter(cfg.RPM),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if rf := req.ResponseFormat; rf != nil && rf.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   rf.Name(),
					Schema: rf.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = mapOpenAIError(err)
		if pe, ok := AsError(err); ok && pe.Class == ClassRateLimited {
			c.limiter.Record429(pe.RetryAfter)
		}
		return nil, err
	}

	resp := &Response{
		Provider:         OpenAIName,
		ModelUsed:        completion.Model,
		RequestID:        completion.ID,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		ExecutionTime:    time.Since(start),
	}
	for _, choice := range completion.Choices {
		resp.Candidates = append(resp.Candidates, Candidate{
			Text:         choice.Message.Content,
			FinishReason: string(choice.FinishReason),
		})
	}
	return resp, nil
}

// mapOpenAIError converts SDK errors into *Error.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai request failed: %w", err)
	}
	msg := strings.TrimSpace(apiErr.Message)
	if apiErr.Code != "" {
		msg = strings.TrimSpace(fmt.Sprintf("%s (%s)", msg, apiErr.Code))
	}
	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
	}
	return NewError(OpenAIName, apiErr.StatusCode, msg, header)
}

var _ LLMClient = (*OpenAIClient)(nil)
