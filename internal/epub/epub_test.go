package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func testBuilder() *Builder {
	return NewBuilder(Book{
		ID:        "urn:uuid:test",
		Title:     "Heir & Storm",
		Author:    "quire",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, []Page{
		{ID: "facet_01", Title: "Basics", Matter: FrontMatter, Markdown: "Title: Heir"},
		{ID: "ch_0001", Title: "Opening", Number: 1, Matter: Body, Markdown: "**Content**: Mira wakes.\n**Hook**: a knock"},
		{ID: "ch_0002", Title: "Letter", Number: 2, Matter: Body, Markdown: "A <letter>."},
		{ID: "facet_02", Title: "Side Plots", Matter: BackMatter, Markdown: "- one\n- two"},
	})
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	if zr.File[0].Name != "mimetype" || zr.File[0].Method != zip.Store {
		t.Errorf("first entry = %s", zr.File[0].Name)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestBuild(t *testing.T) {
	data, err := testBuilder().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	files := readZip(t, data)

	if files["mimetype"] != "application/epub+zip" {
		t.Errorf("mimetype = %q", files["mimetype"])
	}

	t.Run("package", func(t *testing.T) {
		opf := files["OEBPS/content.opf"]
		for _, want := range []string{
			"<dc:title>Heir &amp; Storm</dc:title>",
			"<dc:language>en</dc:language>",
			"2026-01-02T03:04:05Z",
			`<itemref idref="ch_0002"/>`,
		} {
			if !strings.Contains(opf, want) {
				t.Errorf("content.opf missing %q", want)
			}
		}
		if strings.Index(opf, `idref="facet_01"`) > strings.Index(opf, `idref="ch_0001"`) {
			t.Error("spine out of order")
		}
	})

	t.Run("navigation nests chapters", func(t *testing.T) {
		nav := files["OEBPS/nav.xhtml"]
		i := strings.Index(nav, ">Chapters</a>")
		j := strings.Index(nav, "Chapter 1: Opening")
		k := strings.Index(nav, ">Side Plots<")
		if i < 0 || j < i || k < j {
			t.Errorf("nav order wrong:\n%s", nav)
		}
		if !strings.Contains(files["OEBPS/toc.ncx"], `playOrder="4"`) {
			t.Error("toc.ncx missing navpoints")
		}
	})

	t.Run("pages", func(t *testing.T) {
		ch := files["OEBPS/pages/ch_0001.xhtml"]
		if !strings.Contains(ch, `<strong class="field">Content</strong>`) {
			t.Errorf("bold not converted:\n%s", ch)
		}
		if !strings.Contains(files["OEBPS/pages/ch_0002.xhtml"], "A &lt;letter&gt;.") {
			t.Error("text not escaped")
		}
		if !strings.Contains(files["OEBPS/pages/facet_02.xhtml"], `class="back-matter"`) {
			t.Error("matter class missing")
		}
	})
}

func TestDefaults(t *testing.T) {
	b := NewBuilder(Book{Title: "x"}, nil)
	if !strings.HasPrefix(b.uid, "urn:uuid:") || b.book.Language != "en" || b.book.CreatedAt.IsZero() {
		t.Errorf("defaults not applied: %+v %s", b.book, b.uid)
	}
}

func TestMarkdownToXHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraph per line", "a\nb", "<p>a</p>\n<p>b</p>\n"},
		{"list", "- a\n- b\n\nc", "<ul>\n<li>a</li>\n<li>b</li>\n</ul>\n<p>c</p>\n"},
		{"heading", "## Part", "<h2>Part</h2>\n"},
		{"rule", "---", "<hr/>\n"},
		{"italic", "*soft*", "<p><em>soft</em></p>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := markdownToXHTML(tt.in); got != tt.want {
				t.Errorf("markdownToXHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
