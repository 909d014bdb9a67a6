// Package home lays out the quire home directory: config, exports, call logs
// and prompt overrides.
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDirName is the default name for the quire home directory.
	DefaultDirName = ".quire"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// OutputDirName is the subdirectory for exported outlines.
	OutputDirName = "output"

	// CallsDirName is the subdirectory for per-attempt call logs.
	CallsDirName = "calls"

	// PromptsDirName is the subdirectory for prompt overrides.
	PromptsDirName = "prompts"
)

// Dir represents the quire home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.quire).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// OutputPath returns the default export directory.
func (d *Dir) OutputPath() string {
	return filepath.Join(d.path, OutputDirName)
}

// CallsPath returns the directory holding call logs.
func (d *Dir) CallsPath() string {
	return filepath.Join(d.path, CallsDirName)
}

// CallLogPath returns the call log for one day, one JSON object per line.
func (d *Dir) CallLogPath(day time.Time) string {
	return filepath.Join(d.CallsPath(), day.UTC().Format("2006-01-02")+".jsonl")
}

// PromptsPath returns the prompt override directory.
func (d *Dir) PromptsPath() string {
	return filepath.Join(d.path, PromptsDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.OutputPath(), d.CallsPath(), d.PromptsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// OpenCallLog opens today's call log for appending, creating it if needed.
func (d *Dir) OpenCallLog(now time.Time) (*os.File, error) {
	if err := os.MkdirAll(d.CallsPath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create calls directory: %w", err)
	}
	return os.OpenFile(d.CallLogPath(now), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
