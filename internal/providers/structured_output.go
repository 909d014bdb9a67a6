package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// adaptedResponseFormat returns an OpenRouter-compatible response format. Local
// validation always runs against the canonical schema, so bounds stripped here
// are still enforced after the call.
func adaptedResponseFormat(model string, rf *ResponseFormat) (*openRouterResponseFormat, error) {
	if rf == nil {
		return nil, nil
	}
	// OpenRouter may route anthropic/* models to backends that reject native
	// structured outputs; those models get prompt-only JSON instructions.
	if isAnthropicModel(model) {
		return nil, nil
	}

	schema := rf.JSONSchema
	if len(schema) > 0 && isGeminiModel(model) {
		var err error
		schema, err = stripSchemaBounds(schema)
		if err != nil {
			return nil, err
		}
	}
	return &openRouterResponseFormat{
		Type:       rf.Type,
		JSONSchema: schema,
	}, nil
}

func isAnthropicModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "anthropic/")
}

func isGeminiModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	return strings.HasPrefix(m, "google/") || strings.HasPrefix(m, "gemini")
}

// stripSchemaBounds removes integer minimum/maximum keywords, which some
// routed backends reject in output schemas.
func stripSchemaBounds(raw json.RawMessage) (json.RawMessage, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to parse structured schema: %w", err)
	}
	stripIntegerBounds(root)
	out, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sanitized structured schema: %w", err)
	}
	return out, nil
}

func stripIntegerBounds(node any) {
	switch n := node.(type) {
	case map[string]any:
		if t, _ := n["type"].(string); t == "integer" {
			delete(n, "minimum")
			delete(n, "maximum")
		}
		for _, v := range n {
			stripIntegerBounds(v)
		}
	case []any:
		for _, v := range n {
			stripIntegerBounds(v)
		}
	}
}
