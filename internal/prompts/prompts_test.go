package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{{.Name}} has {{ .Count }} {{- if .Theme}}x{{end}} {{.Name}} {{.Volume.Stage}}")
	want := []string{"Count", "Name", "Theme", "Volume.Stage"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractVariables() mismatch (-want +got):\n%s", diff)
	}
}

func TestRender(t *testing.T) {
	got, err := Render("k", "  hello {{.Name}}\n", map[string]any{"Name": "world"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "hello world" {
		t.Errorf("Render() = %q", got)
	}

	if _, err := Render("k", "{{.Missing}}", map[string]any{}); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := Render("k", "{{.Broken", nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)

	o, err := s.Get("a.b")
	if err != nil || o != nil {
		t.Fatalf("Get() on empty dir = %v, %v", o, err)
	}
	if _, err := s.Get("../etc"); err == nil {
		t.Error("expected invalid key error")
	}

	if err := s.Write("b.key", "two"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Write("a.key", "one"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var keys []string
	for _, o := range list {
		keys = append(keys, o.Key)
	}
	if diff := cmp.Diff([]string{"a.key", "b.key"}, keys); diff != "" {
		t.Errorf("List() keys mismatch (-want +got):\n%s", diff)
	}

	if err := s.Clear("a.key"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if o, _ := s.Get("a.key"); o != nil {
		t.Error("override still present after Clear")
	}
}

func TestResolver(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	r := NewResolver(store, nil)
	r.Register(EmbeddedPrompt{Key: "x.greet", Text: "hi {{.Name}}"})
	r.Register(EmbeddedPrompt{Key: "x.plain", Text: "plain"})

	t.Run("embedded", func(t *testing.T) {
		p, err := r.Resolve("x.greet")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsOverride || p.Hash != HashText("hi {{.Name}}") {
			t.Errorf("Resolve() = %+v", p)
		}
		if diff := cmp.Diff([]string{"Name"}, p.Variables); diff != "" {
			t.Errorf("variables mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if _, err := r.Resolve("x.none"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("broken override falls back", func(t *testing.T) {
		if err := store.Write("x.greet", "{{.Nope"); err != nil {
			t.Fatal(err)
		}
		got, err := r.Render("x.greet", map[string]any{"Name": "ann"})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if got != "hi ann" {
			t.Errorf("Render() = %q", got)
		}
	})

	t.Run("export skips existing", func(t *testing.T) {
		written, err := r.Export(false)
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if diff := cmp.Diff([]string{"x.plain"}, written); diff != "" {
			t.Errorf("Export() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no store", func(t *testing.T) {
		bare := NewResolver(nil, nil)
		bare.Register(EmbeddedPrompt{Key: "k", Text: "t"})
		if _, err := bare.Resolve("k"); err != nil {
			t.Errorf("Resolve() error = %v", err)
		}
		if _, err := bare.Export(false); err == nil {
			t.Error("expected export error without store")
		}
	})
}
