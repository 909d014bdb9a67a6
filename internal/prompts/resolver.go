package prompts

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Resolver resolves prompts with on-disk overrides.
// Resolution order: override file > embedded default
type Resolver struct {
	store    *Store
	embedded map[string]EmbeddedPrompt
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewResolver creates a new prompt resolver. store may be nil.
func NewResolver(store *Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    store,
		embedded: make(map[string]EmbeddedPrompt),
		logger:   logger,
	}
}

// Register registers an embedded prompt.
// This should be called during initialization by each prompt package.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Compute hash if not provided
	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}

	// Extract variables if not provided
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// Resolve returns the override if it exists, otherwise the embedded default.
func (r *Resolver) Resolve(key string) (*ResolvedPrompt, error) {
	override, err := r.store.Get(key)
	if err != nil {
		r.logger.Warn("failed to check prompt override", "key", key, "error", err)
		// Fall through to embedded default
	} else if override != nil {
		return &ResolvedPrompt{
			Key:        key,
			Text:       override.Text,
			Variables:  ExtractVariables(override.Text),
			IsOverride: true,
			Hash:       HashText(override.Text),
		}, nil
	}

	r.mu.RLock()
	embedded, ok := r.embedded[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}

	return &ResolvedPrompt{
		Key:       key,
		Text:      embedded.Text,
		Variables: embedded.Variables,
		Hash:      embedded.Hash,
	}, nil
}

// Render resolves key and executes it against data.
func (r *Resolver) Render(key string, data any) (string, error) {
	p, err := r.Resolve(key)
	if err != nil {
		return "", err
	}
	out, err := Render(key, p.Text, data)
	if err != nil && p.IsOverride {
		// A broken override must not stop generation.
		r.logger.Warn("override failed to render, using embedded default", "key", key, "error", err)
		r.mu.RLock()
		embedded, ok := r.embedded[key]
		r.mu.RUnlock()
		if ok {
			return Render(key, embedded.Text, data)
		}
	}
	return out, err
}

// GetEmbedded returns the embedded default for a key (no override resolution).
func (r *Resolver) GetEmbedded(key string) (*EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return &p, ok
}

// AllEmbedded returns all registered embedded prompts, sorted by key.
func (r *Resolver) AllEmbedded() []EmbeddedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Export writes every embedded default into the override directory so it can
// be edited. Existing files are left alone unless force is set. It returns the
// keys written.
func (r *Resolver) Export(force bool) ([]string, error) {
	if r.store == nil {
		return nil, fmt.Errorf("store not configured")
	}

	var written []string
	for _, p := range r.AllEmbedded() {
		if !force {
			existing, err := r.store.Get(p.Key)
			if err != nil {
				return written, err
			}
			if existing != nil {
				r.logger.Debug("override exists, skipping export", "key", p.Key)
				continue
			}
		}
		if err := r.store.Write(p.Key, p.Text); err != nil {
			return written, fmt.Errorf("failed to export prompt %s: %w", p.Key, err)
		}
		written = append(written, p.Key)
	}

	r.logger.Info("exported prompts", "count", len(written), "dir", r.store.Dir())
	return written, nil
}
