// Package prompts provides prompt management with embedded defaults and
// on-disk overrides.
//
// Embedded .tmpl files in code are the source of truth for defaults. A
// configured override directory may hold <key>.tmpl files that replace
// individual defaults without rebuilding.
//
// Resolution order for a key:
//  1. Override file (if the directory is configured and the file exists)
//  2. Embedded default (from .tmpl files in code)
package prompts

import (
	"time"
)

// Override is a prompt replacement read from the override directory.
type Override struct {
	Key       string    `json:"key" yaml:"key"`
	Text      string    `json:"text" yaml:"-"`
	Path      string    `json:"path" yaml:"path"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ResolvedPrompt is the result of resolving a prompt key.
type ResolvedPrompt struct {
	Key        string   `json:"key" yaml:"key"`
	Text       string   `json:"text" yaml:"-"`
	Variables  []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	IsOverride bool     `json:"is_override" yaml:"is_override"` // true if read from the override directory
	Hash       string   `json:"hash" yaml:"hash"`               // SHA256 of Text, for traceability
}

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: novel.records
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}
