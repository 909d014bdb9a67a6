package home

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-quire")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-quire" {
			t.Errorf("expected path /tmp/test-quire, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-quire")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-quire/config.yaml"},
		{"OutputPath", dir.OutputPath(), "/tmp/test-quire/output"},
		{"CallsPath", dir.CallsPath(), "/tmp/test-quire/calls"},
		{"PromptsPath", dir.PromptsPath(), "/tmp/test-quire/prompts"},
		{"CallLogPath", dir.CallLogPath(time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)), "/tmp/test-quire/calls/2026-03-04.jsonl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	dir, err := New(filepath.Join(t.TempDir(), "quire-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
	for _, p := range []string{dir.OutputPath(), dir.CallsPath(), dir.PromptsPath()} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Errorf("%s should exist after EnsureExists", p)
		}
	}
}

func TestDir_ConfigExists(t *testing.T) {
	dir, _ := New(t.TempDir())

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}
	if err := os.WriteFile(dir.ConfigPath(), []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}

func TestDir_OpenCallLog(t *testing.T) {
	dir, _ := New(t.TempDir())
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		f, err := dir.OpenCallLog(now)
		if err != nil {
			t.Fatalf("OpenCallLog() error = %v", err)
		}
		if _, err := f.WriteString("{}\n"); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	data, err := os.ReadFile(dir.CallLogPath(now))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}\n{}\n" {
		t.Errorf("call log = %q, want two appended lines", data)
	}
}
