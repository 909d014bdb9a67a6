package config

import (
	"errors"
	"testing"
)

func TestDefaultEntries(t *testing.T) {
	entries := DefaultEntries()

	if len(entries) == 0 {
		t.Fatal("DefaultEntries() returned empty slice")
	}

	requiredKeys := []string{
		"defaults.backends",
		"defaults.max_concurrent_jobs",
		"invoke.empty_switch_after",
		"invoke.empty_budget",
		"reconcile.max_run",
		"reconcile.enrich",
		"generation.optimize_system",
		"export.formats",
	}

	keys := make(map[string]bool)
	for _, e := range entries {
		if err := ValidateKey(e.Key); err != nil {
			t.Errorf("invalid default key %q: %v", e.Key, err)
		}
		if e.Description == "" {
			t.Errorf("key %q has no description", e.Key)
		}
		if keys[e.Key] {
			t.Errorf("duplicate key %q", e.Key)
		}
		keys[e.Key] = true
	}

	for _, key := range requiredKeys {
		if !keys[key] {
			t.Errorf("DefaultEntries() missing required key: %s", key)
		}
	}
}

func TestGetDefault(t *testing.T) {
	t.Run("existing_key", func(t *testing.T) {
		entry := GetDefault("invoke.empty_budget")
		if entry == nil {
			t.Fatal("GetDefault() returned nil for existing key")
		}
		if entry.Value != 8 {
			t.Errorf("GetDefault() Value = %v, want 8", entry.Value)
		}
	})

	t.Run("non_existent_key", func(t *testing.T) {
		entry := GetDefault("does.not.exist")
		if entry != nil {
			t.Errorf("GetDefault() = %v, want nil for non-existent key", entry)
		}
	})
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"defaults.batch_size", false},
		{"llm_providers.open-router.rpm", false},
		{"", true},
		{".leading", true},
		{"trailing.", true},
		{"has space", true},
		{"has/slash", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("error does not wrap ErrInvalidKey: %v", err)
			}
		})
	}
}
