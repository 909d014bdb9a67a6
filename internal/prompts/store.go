package prompts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// validKeyPattern matches valid prompt keys (alphanumeric with dots, underscores).
var validKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._]*$`)

const overrideExt = ".tmpl"

// Store reads and writes prompt overrides in a directory, one <key>.tmpl file
// per prompt. A Store with an empty directory holds no overrides.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a new prompt store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the override directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) (string, error) {
	if !validKeyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid prompt key: %s", key)
	}
	return filepath.Join(s.dir, key+overrideExt), nil
}

// Get returns the override for key, or nil when none exists.
func (s *Store) Get(key string) (*Override, error) {
	if s == nil || s.dir == "" {
		return nil, nil
	}
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat override %s: %w", key, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read override %s: %w", key, err)
	}
	return &Override{Key: key, Text: string(data), Path: path, UpdatedAt: info.ModTime()}, nil
}

// List returns every override in the directory, sorted by key.
func (s *Store) List() ([]Override, error) {
	if s == nil || s.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}

	var out []Override
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, overrideExt) {
			continue
		}
		key := strings.TrimSuffix(name, overrideExt)
		o, err := s.Get(key)
		if err != nil {
			s.logger.Warn("skipping unreadable override", "file", name, "error", err)
			continue
		}
		if o != nil {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Write stores text as the override for key.
func (s *Store) Write(key, text string) error {
	if s == nil || s.dir == "" {
		return fmt.Errorf("override directory not configured")
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create override directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write override %s: %w", key, err)
	}
	return nil
}

// Clear removes the override for key. A missing override is not an error.
func (s *Store) Clear(key string) error {
	if s == nil || s.dir == "" {
		return nil
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove override %s: %w", key, err)
	}
	return nil
}
