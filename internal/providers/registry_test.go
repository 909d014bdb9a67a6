package providers

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		r := NewRegistry()
		mock := NewMockClient("test-llm")

		r.Register("test-llm", mock)

		client, err := r.Get("test-llm")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if client != mock {
			t.Error("got different client than registered")
		}
	})

	t.Run("get nonexistent", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.Get("nonexistent"); err == nil {
			t.Error("expected error for nonexistent client")
		}
	})

	t.Run("backends keep priority order", func(t *testing.T) {
		r := NewRegistry()
		r.Register("a", NewMockClient("a"))
		r.Register("b", NewMockClient("b"))
		r.Register("c", NewMockClient("c"))

		var names []string
		for _, b := range r.Backends([]string{"c", "missing", "a", "c"}) {
			names = append(names, b.Name)
		}
		if diff := cmp.Diff([]string{"c", "a"}, names); diff != "" {
			t.Errorf("Backends() mismatch (-want +got):\n%s", diff)
		}
		if got := len(r.Backends(nil)); got != 3 {
			t.Errorf("Backends(nil) = %d entries, want 3", got)
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		r := NewRegistry()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				r.Register("shared", NewMockClient("shared"))
			}()
			go func() {
				defer wg.Done()
				_ = r.List()
				_ = r.Backends([]string{"shared"})
			}()
		}
		wg.Wait()
		if !r.Has("shared") {
			t.Error("expected shared client")
		}
	})
}

func TestRegistryFromConfig(t *testing.T) {
	cfg := RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
		"primary":  {Type: OpenRouterName, Model: "google/gemini-2.5-flash", APIKey: "k1", Enabled: true},
		"fallback": {Type: OpenAIName, Model: "gpt-4o-mini", APIKey: "k2", Enabled: true},
		"nokey":    {Type: OpenAIName, Enabled: true},
		"disabled": {Type: OpenRouterName, APIKey: "k3"},
		"dry":      {Type: MockClientName, Enabled: true},
	}}

	r, err := NewRegistryFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	if diff := cmp.Diff([]string{"dry", "fallback", "primary"}, r.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	if got := r.Model("fallback"); got != "gpt-4o-mini" {
		t.Errorf("Model() = %q", got)
	}

	t.Run("unknown type fails", func(t *testing.T) {
		_, err := NewRegistryFromConfig(RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
			"x": {Type: "carrier-pigeon", APIKey: "k", Enabled: true},
		}})
		if err == nil {
			t.Error("expected error for unknown provider type")
		}
	})

	t.Run("reload", func(t *testing.T) {
		before, _ := r.Get("primary")
		unchanged, _ := r.Get("fallback")

		next := RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
			"primary":  {Type: OpenRouterName, Model: "anthropic/claude-sonnet-4", APIKey: "k1", Enabled: true},
			"fallback": cfg.LLMProviders["fallback"],
		}}
		r.Reload(next)

		if diff := cmp.Diff([]string{"fallback", "primary"}, r.List()); diff != "" {
			t.Errorf("List() after reload mismatch (-want +got):\n%s", diff)
		}
		after, _ := r.Get("primary")
		if after == before {
			t.Error("changed provider should be recreated")
		}
		if same, _ := r.Get("fallback"); same != unchanged {
			t.Error("unchanged provider should be kept")
		}
		if got := r.Model("primary"); got != "anthropic/claude-sonnet-4" {
			t.Errorf("Model() = %q", got)
		}
	})
}
