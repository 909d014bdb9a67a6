package export

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/quire/internal/epub"
	"github.com/jackzampolin/quire/internal/outline"
)

// Pages lays the document out for the ePub builder. Sections before the first
// record are front matter and sections after the last record are back matter.
// Sections between record batches (volume blueprints) stay in reading order.
// Each record becomes its own page; a record repeated later in the text is
// emitted once, the first parse winning like Document.Index.
func Pages(doc *outline.Document) []epub.Page {
	sections := doc.Sections()
	isRecords := recordSections(sections)

	last := -1
	for i := range sections {
		if isRecords[i] {
			last = i
		}
	}

	var (
		pages       []epub.Page
		seen        = make(map[int]bool)
		seenRecords bool
		facet       int
	)
	index := doc.Index()
	for i, s := range sections {
		if isRecords[i] {
			seenRecords = true
			for _, r := range outline.Sorted(outline.ParseRecords(s.Text)) {
				if seen[r.Index] {
					continue
				}
				seen[r.Index] = true
				if canonical, ok := index[r.Index]; ok {
					r = canonical
				}
				pages = append(pages, epub.Page{
					ID:       fmt.Sprintf("ch_%04d", r.Index),
					Title:    r.Title,
					Number:   r.Index,
					Matter:   epub.Body,
					Markdown: r.Body,
				})
			}
			continue
		}

		matter := epub.Body
		switch {
		case !seenRecords:
			matter = epub.FrontMatter
		case i > last:
			matter = epub.BackMatter
		}
		title := s.Label
		if title == "" {
			title = "Preface"
		}
		facet++
		pages = append(pages, epub.Page{
			ID:       fmt.Sprintf("facet_%02d", facet),
			Title:    title,
			Matter:   matter,
			Markdown: s.Text,
		})
	}
	return pages
}

// recordSections marks the sections that hold records. Sections labelled like
// "Chapters 1-15" are preferred so that a facet quoting "Chapter 3: ..." stays a
// facet; imported text with other headings falls back to content detection.
func recordSections(sections []outline.Section) []bool {
	marks := make([]bool, len(sections))
	var found bool
	for i, s := range sections {
		label := strings.ToLower(s.Label)
		if (label == "" || strings.HasPrefix(label, "chapter")) && outline.HasRecords(s.Text) {
			marks[i], found = true, true
		}
	}
	if found {
		return marks
	}
	for i, s := range sections {
		marks[i] = outline.HasRecords(s.Text)
	}
	return marks
}
