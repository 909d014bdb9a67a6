package export

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/quire/internal/epub"
	"github.com/jackzampolin/quire/internal/outline"
)

func sampleDoc() *outline.Document {
	doc := outline.NewDocument()
	doc.Append("Basics", "Title: The Heir\nLogline: a girl inherits a storm.")
	doc.Append("Cast", "- Mira: the heir")
	doc.Append("Chapters 1-2", outline.RenderRecords([]outline.Record{
		{Index: 1, Title: "Opening", Body: outline.FormatBody("Mira wakes.", "a knock", "none")},
		{Index: 2, Title: "The Letter", Body: outline.FormatBody("A letter arrives.", "the seal", "the knock")},
	}))
	doc.Append("Volume 2 Blueprint", "Escalate.")
	doc.Append("Chapters 3", outline.RenderRecord(outline.Record{Index: 3, Title: "Storm", Body: "The storm breaks."}))
	doc.Append("Side Plots", "Chapter 3: the storm subplot")
	return doc
}

func TestNewWriter(t *testing.T) {
	t.Run("requires dir", func(t *testing.T) {
		if _, err := NewWriter(Config{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		if _, err := NewWriter(Config{Dir: t.TempDir(), Formats: []string{"pdf"}}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("normalizes formats", func(t *testing.T) {
		w, err := NewWriter(Config{Dir: t.TempDir(), Formats: []string{"MD", "yml", "md"}})
		if err != nil {
			t.Fatalf("NewWriter() error = %v", err)
		}
		if diff := cmp.Diff([]string{"md", "yaml"}, w.formats); diff != "" {
			t.Errorf("formats mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		w, err := NewWriter(Config{Dir: t.TempDir()})
		if err != nil {
			t.Fatalf("NewWriter() error = %v", err)
		}
		if diff := cmp.Diff(DefaultFormats, w.formats); diff != "" {
			t.Errorf("formats mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(Config{Dir: dir, Formats: []string{"md", "json", "yaml", "epub"}})
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	doc := sampleDoc()

	files, err := w.Write("The Heir", doc)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "The-Heir.md"),
		filepath.Join(dir, "The-Heir.records.json"),
		filepath.Join(dir, "The-Heir.records.yaml"),
		filepath.Join(dir, "The-Heir.epub"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}

	t.Run("markdown is the document text", func(t *testing.T) {
		data, err := os.ReadFile(files[0])
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != doc.Text() {
			t.Error("markdown differs from document text")
		}
	})

	t.Run("json records", func(t *testing.T) {
		data, err := os.ReadFile(files[1])
		if err != nil {
			t.Fatal(err)
		}
		var rf RecordFile
		if err := json.Unmarshal(data, &rf); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if rf.Count != 3 || len(rf.Chapters) != 3 || rf.Chapters[2].Title != "Storm" {
			t.Errorf("records = %+v", rf)
		}
		var labels []string
		for _, f := range rf.Facets {
			labels = append(labels, f.Label)
		}
		if diff := cmp.Diff([]string{"Basics", "Cast", "Volume 2 Blueprint", "Side Plots"}, labels); diff != "" {
			t.Errorf("facets mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("yaml records", func(t *testing.T) {
		data, err := os.ReadFile(files[2])
		if err != nil {
			t.Fatal(err)
		}
		var rf RecordFile
		if err := yaml.Unmarshal(data, &rf); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if rf.Name != "The-Heir" || rf.Count != 3 {
			t.Errorf("records = %+v", rf)
		}
	})

	t.Run("epub archive", func(t *testing.T) {
		zr, err := zip.OpenReader(files[3])
		if err != nil {
			t.Fatalf("OpenReader() error = %v", err)
		}
		defer zr.Close()
		if zr.File[0].Name != "mimetype" || zr.File[0].Method != zip.Store {
			t.Errorf("first entry = %s (method %d)", zr.File[0].Name, zr.File[0].Method)
		}
		names := make(map[string]bool)
		for _, f := range zr.File {
			names[f.Name] = true
		}
		for _, n := range []string{"OEBPS/content.opf", "OEBPS/pages/ch_0001.xhtml", "OEBPS/pages/ch_0003.xhtml", "OEBPS/pages/facet_01.xhtml"} {
			if !names[n] {
				t.Errorf("missing %s", n)
			}
		}
	})

	t.Run("no temp files left", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.Contains(e.Name(), ".tmp.") {
				t.Errorf("leftover temp file %s", e.Name())
			}
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		doc.Append("Reader Hooks", "More hooks.")
		if _, err := w.Write("The Heir", doc); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		data, _ := os.ReadFile(files[0])
		if !strings.Contains(string(data), "More hooks.") {
			t.Error("markdown not replaced")
		}
	})
}

func TestWriteEmptyDocument(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir(), Formats: []string{"json"}})
	if err != nil {
		t.Fatal(err)
	}
	files, err := w.Write("", outline.NewDocument())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), `"chapters": []`) {
		t.Errorf("records = %s", data)
	}
	if filepath.Base(files[0]) != "outline.records.json" {
		t.Errorf("file = %s", files[0])
	}
}

func TestPages(t *testing.T) {
	type page struct {
		ID     string
		Number int
		Matter epub.Matter
	}
	var got []page
	for _, p := range Pages(sampleDoc()) {
		got = append(got, page{p.ID, p.Number, p.Matter})
	}
	want := []page{
		{"facet_01", 0, epub.FrontMatter},
		{"facet_02", 0, epub.FrontMatter},
		{"ch_0001", 1, epub.Body},
		{"ch_0002", 2, epub.Body},
		{"facet_03", 0, epub.Body},
		{"ch_0003", 3, epub.Body},
		{"facet_04", 0, epub.BackMatter},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPagesImportedText(t *testing.T) {
	doc := outline.FromText("## Volume One\n\n### Chapter 1: A\nfirst\n\n### Chapter 2: B\nsecond\n")
	pages := Pages(doc)
	if len(pages) != 2 || pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("pages = %+v", pages)
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"heir", "heir"},
		{"The Heir / Part 2", "The-Heir-Part-2"},
		{"  ", "outline"},
		{"../escape", "escape"},
		{"天命之子", "天命之子"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SafeName(tt.in); got != tt.want {
				t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
