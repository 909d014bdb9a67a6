package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenRouterClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Verify request
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}

			resp := map[string]any{
				"id":    "test-id",
				"model": "google/gemini-2.5-flash",
				"choices": []map[string]any{
					{
						"message": map[string]any{
							"role":    "assistant",
							"content": "Hello! How can I help you?",
						},
						"finish_reason": "stop",
					},
				},
				"usage": map[string]any{
					"prompt_tokens":     10,
					"completion_tokens": 8,
					"total_tokens":      18,
					"cost":              0.002,
				},
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{
				{Role: "user", Content: "Hello"},
			},
		})

		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if got := ExtractText(result); got != "Hello! How can I help you?" {
			t.Errorf("text = %q", got)
		}
		if result.TotalTokens != 18 {
			t.Errorf("TotalTokens = %d, want 18", result.TotalTokens)
		}
		if result.CostUSD != 0.002 {
			t.Errorf("CostUSD = %v", result.CostUSD)
		}
		if result.RequestID == "" {
			t.Error("expected generated request id")
		}
	})

	t.Run("content parts skip reasoning", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":[
				{"type":"reasoning","text":"thinking..."},
				{"type":"text","text":"answer"}
			]}}]}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "q"}}})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if got := ExtractText(result); got != "answer" {
			t.Errorf("text = %q, want answer", got)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"Rate limit exceeded","code":429}}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "q"}}})
		pe, ok := AsError(err)
		if !ok {
			t.Fatalf("expected *Error, got %v", err)
		}
		if pe.Class != ClassRateLimited || pe.RetryAfter != 7*time.Second {
			t.Errorf("error = %+v", pe)
		}
		if !client.Limiter().Status().BlockedUntil.After(time.Now()) {
			t.Error("expected limiter to be blocked after 429")
		}
	})

	t.Run("error in 200 body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"insufficient_quota","code":"insufficient_quota"}}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "q"}}})
		pe, ok := AsError(err)
		if !ok || pe.Class != ClassQuotaExhausted {
			t.Errorf("error = %v, want quota exhausted", err)
		}
	})

	t.Run("retry attempt gets nonce", func(t *testing.T) {
		var received openRouterRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&received)
			w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "q"}},
			Attempt:  2,
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if got := received.Messages[1].Content; !strings.Contains(got, "retry_2_id") {
			t.Errorf("user message = %q, want nonce", got)
		}
		if received.Messages[0].Content != "sys" {
			t.Errorf("system message changed: %q", received.Messages[0].Content)
		}
	})
}

func TestAdaptedResponseFormat(t *testing.T) {
	rf, err := NewResponseFormat(map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name": "chapter_records",
			"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"index": map[string]any{"type": "integer", "minimum": 1, "maximum": 15},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewResponseFormat() error = %v", err)
	}

	t.Run("anthropic gets none", func(t *testing.T) {
		got, err := adaptedResponseFormat("anthropic/claude-sonnet-4", rf)
		if err != nil || got != nil {
			t.Errorf("adaptedResponseFormat() = %v, %v", got, err)
		}
	})

	t.Run("gemini strips bounds", func(t *testing.T) {
		got, err := adaptedResponseFormat("google/gemini-2.5-flash", rf)
		if err != nil {
			t.Fatalf("adaptedResponseFormat() error = %v", err)
		}
		if strings.Contains(string(got.JSONSchema), "minimum") {
			t.Errorf("bounds not stripped: %s", got.JSONSchema)
		}
	})

	t.Run("others keep bounds", func(t *testing.T) {
		got, err := adaptedResponseFormat("openai/gpt-4o", rf)
		if err != nil {
			t.Fatalf("adaptedResponseFormat() error = %v", err)
		}
		if !strings.Contains(string(got.JSONSchema), "maximum") {
			t.Errorf("bounds missing: %s", got.JSONSchema)
		}
	})
}
