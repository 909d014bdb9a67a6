package config

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is one documented configuration key with its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// DefaultEntries returns every scalar configuration key with its default.
// The Manager registers these with viper one leaf at a time, so a config file
// that sets a single key keeps the defaults of its siblings.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// ===================
		// Defaults
		// ===================
		{Key: "defaults.backends", Value: d.Defaults.Backends, Description: "Backend priority order; the first entry is the primary"},
		{Key: "defaults.max_concurrent_jobs", Value: d.Defaults.MaxConcurrentJobs, Description: "Maximum jobs running at once"},
		{Key: "defaults.target_count", Value: d.Defaults.TargetCount, Description: "Number of chapters to generate"},
		{Key: "defaults.volume_count", Value: d.Defaults.VolumeCount, Description: "Number of volumes the chapters are grouped into"},
		{Key: "defaults.batch_size", Value: d.Defaults.BatchSize, Description: "Chapters requested per generation call"},

		// ===================
		// Invocation
		// ===================
		{Key: "invoke.call_timeout_seconds", Value: d.Invoke.CallTimeoutSeconds, Description: "Hard wall-clock limit per provider call"},
		{Key: "invoke.empty_switch_after", Value: d.Invoke.EmptySwitchAfter, Description: "Consecutive empty replies before falling back to the next backend"},
		{Key: "invoke.empty_budget", Value: d.Invoke.EmptyBudget, Description: "Total empty replies per request before giving up"},
		{Key: "invoke.empty_delay_seconds", Value: d.Invoke.EmptyDelaySeconds, Description: "Wait after an empty reply"},
		{Key: "invoke.rate_limit_retries", Value: d.Invoke.RateLimitRetries, Description: "Retries on one backend after rate limiting"},
		{Key: "invoke.rate_limit_delay_seconds", Value: d.Invoke.RateLimitDelaySeconds, Description: "Wait after rate limiting when the provider gives no hint"},
		{Key: "invoke.transient_retries", Value: d.Invoke.TransientRetries, Description: "Retries on one backend after other failures"},
		{Key: "invoke.transient_base_seconds", Value: d.Invoke.TransientBaseSeconds, Description: "First transient backoff"},
		{Key: "invoke.transient_max_seconds", Value: d.Invoke.TransientMaxSeconds, Description: "Transient backoff cap"},
		{Key: "invoke.temperature", Value: d.Invoke.Temperature, Description: "Default sampling temperature"},
		{Key: "invoke.max_tokens", Value: d.Invoke.MaxTokens, Description: "Default output token limit"},

		// ===================
		// Generation
		// ===================
		{Key: "generation.context_chars", Value: d.Generation.ContextChars, Description: "Characters of the document tail sent with each task"},
		{Key: "generation.summary_chars", Value: d.Generation.SummaryChars, Description: "Length of the rolling chapter summary log"},
		{Key: "generation.summary_runes", Value: d.Generation.SummaryRunes, Description: "Length of each chapter's summary line"},
		{Key: "generation.optimize_system", Value: d.Generation.OptimizeSystem, Description: "Ask for a genre-tuned system instruction before generating"},

		// ===================
		// Reconciliation
		// ===================
		{Key: "reconcile.max_run", Value: d.Reconcile.MaxRun, Description: "Longest gap requested in one backfill call"},
		{Key: "reconcile.neighbors", Value: d.Reconcile.Neighbors, Description: "Existing chapters quoted on each side of a gap"},
		{Key: "reconcile.context_chars", Value: d.Reconcile.ContextChars, Description: "Characters of front matter sent with each backfill"},
		{Key: "reconcile.attempts", Value: d.Reconcile.Attempts, Description: "Backfill attempts per gap before bisecting"},
		{Key: "reconcile.retry_delay_seconds", Value: d.Reconcile.RetryDelaySeconds, Description: "Wait between backfill attempts"},
		{Key: "reconcile.enrich", Value: d.Reconcile.Enrich, Description: "Rework chapters that lack a hook or payoff"},

		// ===================
		// Export
		// ===================
		{Key: "export.formats", Value: d.Export.Formats, Description: "Files written when a job completes (md, json, yaml, epub)"},
		{Key: "export.author", Value: d.Export.Author, Description: "ePub creator"},
		{Key: "export.language", Value: d.Export.Language, Description: "ePub language code"},
	}
}

// GetDefault returns the default entry for a config key, or nil if none exists.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}
