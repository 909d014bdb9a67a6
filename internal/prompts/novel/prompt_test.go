package novel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/quire/internal/prompts"
)

func TestEmbeddedRender(t *testing.T) {
	r := NewResolver(nil, nil)

	tests := []struct {
		name string
		key  string
		data any
		want []string
	}{
		{
			name: "records",
			key:  RecordsKey,
			data: RecordsData{From: 16, To: 30, Count: 15},
			want: []string{"chapters 16 to 30", "exactly 15 chapters", `"index": 16`},
		},
		{
			name: "blueprint",
			key:  BlueprintKey,
			data: BlueprintData{Volume: 2, Volumes: 3, From: 11, To: 20, Stage: "reversal"},
			want: []string{"volume 2 of 3", "chapters 11 to 20", "reversal stage"},
		},
		{
			name: "context without history",
			key:  ContextKey,
			data: ContextData{Prompt: "do the thing"},
			want: []string{"do the thing"},
		},
		{
			name: "backfill",
			key:  BackfillKey,
			data: BackfillData{Indices: "5, 6, 7", Before: "### Chapter 4: Four"},
			want: []string{"missing chapters 5, 6, 7", "### Chapter 4: Four"},
		},
		{
			name: "enrich",
			key:  EnrichKey,
			data: EnrichData{Indices: "2, 5", Records: "### Chapter 2: Two\nThe gate opens."},
			want: []string{"Chapters to rework (2, 5)", "### Chapter 2: Two", `"hook": "..."`},
		},
		{
			name: "optimize",
			key:  OptimizeKey,
			data: OptimizeData{Genre: "xianxia", Theme: "a disgraced heir"},
			want: []string{"Genre: xianxia", "Core theme: a disgraced heir", "instruction text only"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.key, tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Render() missing %q in:\n%s", w, got)
				}
			}
		})
	}

	t.Run("context omits empty headings", func(t *testing.T) {
		got, _ := r.Render(ContextKey, ContextData{Prompt: "x"})
		if got != "x" {
			t.Errorf("Render() = %q, want %q", got, "x")
		}
	})
}

func TestConstraintsOptionalLines(t *testing.T) {
	r := NewResolver(nil, nil)
	got, err := r.Render(ConstraintsKey, ConstraintsData{Genre: "urban", GenreRule: "Keep it grounded."})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(got, "Theme") || strings.Contains(got, "channel") {
		t.Errorf("empty fields rendered:\n%s", got)
	}
	if !strings.Contains(got, "- Keep it grounded.") {
		t.Errorf("genre rule missing:\n%s", got)
	}
}

func TestOverrideWins(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, CastKey+".tmpl"), []byte("custom cast"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(prompts.NewStore(dir, nil), nil)

	p, err := r.Resolve(CastKey)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !p.IsOverride || p.Text != "custom cast" {
		t.Errorf("Resolve() = %+v", p)
	}

	p, err = r.Resolve(SettingKey)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.IsOverride {
		t.Error("setting resolved as override")
	}
}

func TestAllKeysRegistered(t *testing.T) {
	r := NewResolver(nil, nil)
	if got := len(r.AllEmbedded()); got != 16 {
		t.Errorf("AllEmbedded() = %d prompts, want 16", got)
	}
	for _, p := range r.AllEmbedded() {
		if strings.TrimSpace(p.Text) == "" {
			t.Errorf("prompt %s is empty", p.Key)
		}
	}
}
