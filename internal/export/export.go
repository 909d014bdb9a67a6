// Package export persists finished documents: the outline text, its records
// as json or yaml and an optional ePub.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/quire/internal/epub"
	"github.com/jackzampolin/quire/internal/outline"
)

// Supported formats.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatEPUB     = "epub"
)

// DefaultFormats is used when Config.Formats is empty.
var DefaultFormats = []string{FormatMarkdown, FormatJSON}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// Config configures a Writer.
type Config struct {
	Dir      string
	Formats  []string
	Author   string // ePub creator
	Language string // ePub language (default: en)
	Logger   *slog.Logger
}

// Writer writes documents under Dir.
type Writer struct {
	dir      string
	formats  []string
	author   string
	language string
	logger   *slog.Logger
}

// NewWriter validates the requested formats.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	formats := cfg.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	seen := make(map[string]bool)
	var clean []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case FormatMarkdown, FormatJSON, FormatYAML, FormatEPUB:
		case "yml":
			f = FormatYAML
		default:
			return nil, fmt.Errorf("unknown export format %q", f)
		}
		if !seen[f] {
			seen[f] = true
			clean = append(clean, f)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Writer{
		dir:      cfg.Dir,
		formats:  clean,
		author:   cfg.Author,
		language: cfg.Language,
		logger:   cfg.Logger,
	}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// RecordFile is the structure of <name>.records.json / .yaml.
type RecordFile struct {
	Name     string           `json:"name" yaml:"name"`
	Count    int              `json:"count" yaml:"count"`
	Facets   []Facet          `json:"facets,omitempty" yaml:"facets,omitempty"`
	Chapters []outline.Record `json:"chapters" yaml:"chapters"`
}

// Facet is one non-record section of the document.
type Facet struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// Write renders doc in every configured format and returns the written paths.
// Files appear atomically; a failure leaves previously written files in place.
func (w *Writer) Write(name string, doc *outline.Document) ([]string, error) {
	base := SafeName(name)
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	var written []string
	for _, format := range w.formats {
		path, data, err := w.render(base, format, doc)
		if err != nil {
			return written, fmt.Errorf("failed to render %s: %w", format, err)
		}
		if err := atomicWriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		w.logger.Debug("exported document", "format", format, "path", path, "bytes", len(data))
		written = append(written, path)
	}
	w.logger.Info("document exported", "name", base, "files", len(written))
	return written, nil
}

func (w *Writer) render(base, format string, doc *outline.Document) (string, []byte, error) {
	switch format {
	case FormatMarkdown:
		return filepath.Join(w.dir, base+".md"), []byte(doc.Text()), nil
	case FormatJSON:
		data, err := json.MarshalIndent(Records(base, doc), "", "  ")
		if err != nil {
			return "", nil, err
		}
		return filepath.Join(w.dir, base+".records.json"), append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(Records(base, doc)); err != nil {
			return "", nil, err
		}
		if err := enc.Close(); err != nil {
			return "", nil, err
		}
		return filepath.Join(w.dir, base+".records.yaml"), buf.Bytes(), nil
	case FormatEPUB:
		book := epub.Book{Title: base, Author: w.author, Language: w.language}
		data, err := epub.NewBuilder(book, Pages(doc)).Bytes()
		if err != nil {
			return "", nil, err
		}
		return filepath.Join(w.dir, base+".epub"), data, nil
	}
	return "", nil, fmt.Errorf("unknown export format %q", format)
}

// Records collects the document's records in index order and its facet sections.
func Records(name string, doc *outline.Document) RecordFile {
	rf := RecordFile{Name: name, Chapters: outline.Sorted(doc.Index())}
	rf.Count = len(rf.Chapters)
	if rf.Chapters == nil {
		rf.Chapters = []outline.Record{}
	}
	sections := doc.Sections()
	isRecords := recordSections(sections)
	for i, s := range sections {
		if s.Label == "" || isRecords[i] {
			continue
		}
		rf.Facets = append(rf.Facets, Facet{Label: s.Label, Text: s.Text})
	}
	return rf
}

// SafeName turns a job name into a file stem.
func SafeName(name string) string {
	s := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(name), "-"), "-.")
	if s == "" {
		return "outline"
	}
	return s
}

// atomicWriteFile writes content to a temp file in the destination directory
// and renames it over path.
func atomicWriteFile(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
