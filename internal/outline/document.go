package outline

import (
	"regexp"
	"sort"
	"strings"
)

// MissingFacet is the body written for a facet whose generation produced nothing.
// Reconciliation treats a section with this body as absent.
const MissingFacet = "(no content)"

// RecordsLabel is the section label used when records are appended to a document
// that contains no numbered records yet.
const RecordsLabel = "Chapters"

var (
	sectionRe    = regexp.MustCompile(`^##\s+(.+?)\s*$`)
	subsectionRe = regexp.MustCompile(`^###\s+(.+?)\s*$`)
)

// Section is one labelled part of a document.
type Section struct {
	Label string
	Text  string
}

// Document is the accumulated generated text. The text is canonical; records and
// sections are always derived from it by parsing.
type Document struct {
	text string
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// FromText wraps existing text, e.g. an imported outline.
func FromText(text string) *Document {
	return &Document{text: text}
}

// Text returns the canonical document text.
func (d *Document) Text() string {
	return d.text
}

// Len returns the document length in characters.
func (d *Document) Len() int {
	return len([]rune(d.text))
}

// Clone returns an independent copy.
func (d *Document) Clone() *Document {
	return &Document{text: d.text}
}

// Tail returns at most the last n characters of the text.
func (d *Document) Tail(n int) string {
	return TailRunes(d.text, n)
}

// Append adds a labelled section to the end of the document. The document is
// only ever extended, never truncated.
func (d *Document) Append(label, body string) {
	body = strings.TrimSpace(body)
	var b strings.Builder
	b.WriteString(d.text)
	if d.text != "" {
		switch {
		case strings.HasSuffix(d.text, "\n\n"):
		case strings.HasSuffix(d.text, "\n"):
			b.WriteString("\n")
		default:
			b.WriteString("\n\n")
		}
	}
	if label != "" {
		b.WriteString("## ")
		b.WriteString(label)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	b.WriteString("\n")
	d.text = b.String()
}

// Index re-parses the text into the sparse record map.
func (d *Document) Index() map[int]Record {
	return ParseRecords(d.text)
}

// Sections splits the text at level-two headings. Text before the first heading
// is returned as a section with an empty label. Record headers never start a section.
func (d *Document) Sections() []Section {
	var (
		out []Section
		cur = Section{}
		buf []string
	)
	for _, line := range strings.Split(d.text, "\n") {
		if label, ok := sectionHeading(line); ok {
			cur.Text = strings.TrimSpace(strings.Join(buf, "\n"))
			if cur.Label != "" || cur.Text != "" {
				out = append(out, cur)
			}
			cur, buf = Section{Label: label}, nil
			continue
		}
		buf = append(buf, line)
	}
	cur.Text = strings.TrimSpace(strings.Join(buf, "\n"))
	if cur.Label != "" || cur.Text != "" {
		out = append(out, cur)
	}
	return out
}

// sectionHeading reports whether line opens a section and returns its label.
func sectionHeading(line string) (string, bool) {
	m := sectionRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	if _, _, _, isRecord := header(line); isRecord {
		return "", false
	}
	return m[1], true
}

// SetSection replaces the body of the first section labelled label, ignoring
// case, or appends a new section when there is none.
func (d *Document) SetSection(label, body string) {
	want := labelKey(label)
	lines := strings.Split(d.text, "\n")
	start, end := -1, len(lines)
	for i, line := range lines {
		l, ok := sectionHeading(line)
		if !ok {
			continue
		}
		if start >= 0 {
			end = i
			break
		}
		if labelKey(l) == want {
			start = i
		}
	}
	if start < 0 {
		d.Append(label, body)
		return
	}

	out := make([]string, 0, len(lines)+3)
	out = append(out, lines[:start+1]...)
	out = append(out, "", strings.TrimSpace(body), "")
	out = append(out, lines[end:]...)
	d.text = strings.Join(out, "\n")
	if end == len(lines) {
		d.text = strings.TrimRight(d.text, "\n") + "\n"
	}
}

// Head returns at most the first n characters of the text.
func (d *Document) Head(n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(d.text)
	if len(r) <= n {
		return d.text
	}
	return string(r[:n])
}

// Section returns the first section whose label matches, ignoring case.
func (d *Document) Section(label string) (Section, bool) {
	want := labelKey(label)
	for _, s := range d.Sections() {
		if labelKey(s.Label) == want {
			return s, true
		}
	}
	return Section{}, false
}

// HasFacet reports whether a section labelled label, or any of its aliases,
// exists and has real content. Imported outlines may carry facets under
// level-three headings; those count too.
func (d *Document) HasFacet(label string, aliases ...string) bool {
	for _, l := range append([]string{label}, aliases...) {
		if s, ok := d.Section(l); ok && hasContent(s.Text) {
			return true
		}
		if hasContent(d.subsection(l)) {
			return true
		}
	}
	return false
}

// subsection returns the body under the first "### label" heading, up to the
// next heading of any level.
func (d *Document) subsection(label string) string {
	want := labelKey(label)
	var (
		body []string
		in   bool
	)
	for _, line := range strings.Split(d.text, "\n") {
		if in {
			if headingRe.MatchString(line) {
				break
			}
			body = append(body, line)
			continue
		}
		m := subsectionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, _, _, isRecord := header(line); !isRecord && labelKey(m[1]) == want {
			in = true
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

func hasContent(text string) bool {
	text = strings.TrimSpace(text)
	return text != "" && text != MissingFacet
}

var labelNumbering = regexp.MustCompile(`^(?:\d+\s*[.、)）]\s*|第\s*\d+\s*部分\s*[:：]\s*)`)

// labelKey folds a section label for comparison: case, surrounding space,
// leading numbering ("3. Cast", "第3部分：世界观与设定") and a trailing colon.
func labelKey(label string) string {
	l := strings.TrimSpace(label)
	l = labelNumbering.ReplaceAllString(l, "")
	l = strings.TrimRight(l, ":： ")
	return strings.ToLower(l)
}

// ReplaceRecords splices records into the text. Each record that already appears
// is rewritten in place when it changed; new records are inserted after the
// nearest existing lower index, or before the first record. When the text holds
// no numbered records at all, the records are appended as a new section.
func (d *Document) ReplaceRecords(records []Record) {
	if len(records) == 0 {
		return
	}
	blocks := scan(d.text)
	if len(blocks) == 0 {
		d.Append(RecordsLabel, RenderRecords(records))
		return
	}

	// The first block for an index is the one ParseRecords keeps unless it is weak;
	// rewrite the block that currently wins so the parse stays consistent.
	winner := make(map[int]int)
	for i, b := range blocks {
		j, ok := winner[b.rec.Index]
		if !ok || (blocks[j].rec.Weak() && !b.rec.Weak()) {
			winner[b.rec.Index] = i
		}
	}

	type edit struct {
		at, end int
		text    string
		order   int
	}
	var edits []edit

	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	pending := make(map[int][]Record) // anchor block -> records inserted after it
	var before []Record               // records inserted before the first block
	first := firstBlock(blocks)

	for _, r := range sorted {
		r = r.Normalized()
		if i, ok := winner[r.Index]; ok {
			b := blocks[i]
			if b.rec.Title == r.Title && b.rec.Body == r.Body {
				continue
			}
			edits = append(edits, edit{at: b.start, end: b.end, text: strings.TrimRight(RenderRecord(r), "\n")})
			continue
		}
		anchor := -1
		for i, b := range blocks {
			if b.rec.Index < r.Index && (anchor < 0 || b.rec.Index > blocks[anchor].rec.Index) {
				anchor = i
			}
		}
		if anchor < 0 {
			before = append(before, r)
			continue
		}
		pending[anchor] = append(pending[anchor], r)
	}

	for anchor, recs := range pending {
		b := blocks[anchor]
		edits = append(edits, edit{at: b.end, end: b.end, text: "\n\n" + strings.TrimRight(RenderRecords(recs), "\n"), order: 1})
	}
	if len(before) > 0 {
		b := blocks[first]
		edits = append(edits, edit{at: b.start, end: b.start, text: RenderRecords(before) + "\n", order: -1})
	}

	// Apply back to front so earlier offsets stay valid.
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].at != edits[j].at {
			return edits[i].at > edits[j].at
		}
		return edits[i].order > edits[j].order
	})
	text := d.text
	for _, e := range edits {
		text = text[:e.at] + e.text + text[e.end:]
	}
	d.text = text
}

func firstBlock(blocks []block) int {
	first := 0
	for i, b := range blocks {
		if b.rec.Index < blocks[first].rec.Index {
			first = i
		}
	}
	return first
}
