// Package epub writes an outline as an ePub 3.0 book: facets as front and
// back matter, one page per chapter.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Book contains the metadata needed for epub generation.
type Book struct {
	ID        string // stable identifier; a random urn:uuid is used when empty
	Title     string
	Author    string
	Language  string // ISO 639-1 code (e.g., "en")
	CreatedAt time.Time
}

// Matter places a page in the reading order.
type Matter int

const (
	FrontMatter Matter = iota
	Body
	BackMatter
)

func (m Matter) class() string {
	switch m {
	case FrontMatter:
		return "front-matter"
	case BackMatter:
		return "back-matter"
	default:
		return "body"
	}
}

// Page is one xhtml document of the book.
type Page struct {
	ID       string // file stem, e.g. "ch_0001"
	Title    string
	Number   int // chapter number; 0 for facet pages
	Matter   Matter
	Markdown string
}

// Builder creates ePub 3.0 files.
type Builder struct {
	book  Book
	pages []Page
	uid   string
}

// NewBuilder creates a new epub builder. Pages are written in order.
func NewBuilder(book Book, pages []Page) *Builder {
	uid := book.ID
	if uid == "" {
		uid = "urn:uuid:" + uuid.New().String()
	}
	if book.Language == "" {
		book.Language = "en"
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}
	return &Builder{book: book, pages: pages, uid: uid}
}

// WriteTo writes the epub archive to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	// mimetype must be first and stored uncompressed.
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return cw.n, fmt.Errorf("failed to create mimetype: %w", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return cw.n, err
	}

	files := []struct {
		name    string
		content string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", b.generatePackage()},
		{"OEBPS/nav.xhtml", b.generateNavigation()},
		{"OEBPS/toc.ncx", b.generateNCX()},
		{"OEBPS/styles/style.css", defaultStylesheet},
	}
	for _, p := range b.pages {
		files = append(files, struct {
			name    string
			content string
		}{"OEBPS/pages/" + p.ID + ".xhtml", b.generatePageXHTML(p)})
	}

	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return cw.n, fmt.Errorf("failed to create %s: %w", f.name, err)
		}
		if _, err := io.WriteString(fw, f.content); err != nil {
			return cw.n, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to finish epub: %w", err)
	}
	return cw.n, nil
}

// Bytes generates the epub in memory.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const defaultStylesheet = `/* quire ePub Stylesheet */

body {
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
}

h1, h2, h3 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
}

h1 {
  font-size: 1.6em;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

p {
  margin: 0.5em 0;
}

.field {
  font-weight: bold;
}

.front-matter, .back-matter {
  font-size: 0.95em;
}
`
