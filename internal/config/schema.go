package config

import "time"

// Config holds quire configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Invoke       InvokeCfg                 `mapstructure:"invoke" yaml:"invoke"`
	Generation   GenerationCfg             `mapstructure:"generation" yaml:"generation"`
	Reconcile    ReconcileCfg              `mapstructure:"reconcile" yaml:"reconcile"`
	Export       ExportCfg                 `mapstructure:"export" yaml:"export"`
}

// LLMProviderCfg configures one backend.
type LLMProviderCfg struct {
	Type    string `mapstructure:"type" yaml:"type"`         // "openrouter", "openai", "gemini", "mock"
	Model   string `mapstructure:"model" yaml:"model"`       // Model name
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`   // API key (supports ${ENV_VAR} syntax)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // Optional endpoint override
	RPM     int    `mapstructure:"rpm" yaml:"rpm"`           // Requests per minute
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies backend selection and job sizing.
type DefaultsCfg struct {
	Backends          []string `mapstructure:"backends" yaml:"backends"` // Priority order; first is primary
	MaxConcurrentJobs int      `mapstructure:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
	TargetCount       int      `mapstructure:"target_count" yaml:"target_count"`
	VolumeCount       int      `mapstructure:"volume_count" yaml:"volume_count"`
	BatchSize         int      `mapstructure:"batch_size" yaml:"batch_size"`
}

// InvokeCfg tunes the per-request retry and fallback policy. Durations are in seconds.
type InvokeCfg struct {
	CallTimeoutSeconds    float64 `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	EmptySwitchAfter      int     `mapstructure:"empty_switch_after" yaml:"empty_switch_after"`
	EmptyBudget           int     `mapstructure:"empty_budget" yaml:"empty_budget"`
	EmptyDelaySeconds     float64 `mapstructure:"empty_delay_seconds" yaml:"empty_delay_seconds"`
	RateLimitRetries      int     `mapstructure:"rate_limit_retries" yaml:"rate_limit_retries"`
	RateLimitDelaySeconds float64 `mapstructure:"rate_limit_delay_seconds" yaml:"rate_limit_delay_seconds"`
	TransientRetries      int     `mapstructure:"transient_retries" yaml:"transient_retries"`
	TransientBaseSeconds  float64 `mapstructure:"transient_base_seconds" yaml:"transient_base_seconds"`
	TransientMaxSeconds   float64 `mapstructure:"transient_max_seconds" yaml:"transient_max_seconds"`
	Temperature           float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens             int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// GenerationCfg bounds the context sent with each generation task.
type GenerationCfg struct {
	ContextChars   int  `mapstructure:"context_chars" yaml:"context_chars"`     // Document tail length
	SummaryChars   int  `mapstructure:"summary_chars" yaml:"summary_chars"`     // Rolling summary length
	SummaryRunes   int  `mapstructure:"summary_runes" yaml:"summary_runes"`     // Per-record summary length
	OptimizeSystem bool `mapstructure:"optimize_system" yaml:"optimize_system"` // Genre-tuned system instruction per job
}

// ReconcileCfg tunes gap backfilling.
type ReconcileCfg struct {
	MaxRun            int     `mapstructure:"max_run" yaml:"max_run"`
	Neighbors         int     `mapstructure:"neighbors" yaml:"neighbors"`
	ContextChars      int     `mapstructure:"context_chars" yaml:"context_chars"`
	Attempts          int     `mapstructure:"attempts" yaml:"attempts"`
	RetryDelaySeconds float64 `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	Enrich            bool    `mapstructure:"enrich" yaml:"enrich"`
}

// ExportCfg selects the files written when a job completes.
type ExportCfg struct {
	Formats  []string `mapstructure:"formats" yaml:"formats"` // md, json, yaml, epub
	Author   string   `mapstructure:"author" yaml:"author"`
	Language string   `mapstructure:"language" yaml:"language"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:    "openrouter",
				Model:   "google/gemini-2.5-flash",
				APIKey:  "${OPENROUTER_API_KEY}",
				RPM:     60,
				Enabled: true,
			},
			"gemini": {
				Type:    "gemini",
				Model:   "gemini-2.5-flash",
				APIKey:  "${GEMINI_API_KEY}",
				RPM:     30,
				Enabled: true,
			},
			"openai": {
				Type:    "openai",
				Model:   "gpt-4.1-mini",
				APIKey:  "${OPENAI_API_KEY}",
				RPM:     60,
				Enabled: true,
			},
		},
		Defaults: DefaultsCfg{
			Backends:          []string{"openrouter", "gemini", "openai"},
			MaxConcurrentJobs: 2,
			TargetCount:       60,
			VolumeCount:       1,
			BatchSize:         15,
		},
		Invoke: InvokeCfg{
			CallTimeoutSeconds:    180,
			EmptySwitchAfter:      2,
			EmptyBudget:           8,
			EmptyDelaySeconds:     2,
			RateLimitRetries:      3,
			RateLimitDelaySeconds: 30,
			TransientRetries:      3,
			TransientBaseSeconds:  4,
			TransientMaxSeconds:   30,
			Temperature:           0.7,
			MaxTokens:             8000,
		},
		Generation: GenerationCfg{
			ContextChars:   22000,
			SummaryChars:   4500,
			SummaryRunes:   60,
			OptimizeSystem: true,
		},
		Reconcile: ReconcileCfg{
			MaxRun:            15,
			Neighbors:         12,
			ContextChars:      6000,
			Attempts:          4,
			RetryDelaySeconds: 2,
			Enrich:            true,
		},
		Export: ExportCfg{
			Formats:  []string{"md", "json"},
			Language: "en",
		},
	}
}

// Seconds converts a configured number of seconds into a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// GetLLMProvider returns a provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
