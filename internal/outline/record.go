// Package outline holds the numbered-record document model: records, their
// canonical text form, the text-backed Document and placeholder synthesis.
// This package has no dependencies on other quire packages to avoid import cycles.
package outline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	// NoContent replaces an empty body. A record body is never empty.
	NoContent = "no content"

	// NonePayoff is the legitimate payoff value when a chapter has none.
	NonePayoff = "none"
)

// Record is one numbered unit of the document (a chapter).
type Record struct {
	Index int    `json:"index" yaml:"index"`
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`

	// Synthetic marks records built by Synthesize rather than generated.
	// It is not rendered; IsPlaceholder recognises synthetic text after a re-parse.
	Synthetic bool `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
}

// Normalized returns the record with trimmed fields and a non-empty body.
func (r Record) Normalized() Record {
	r.Title = cleanTitle(r.Title)
	r.Body = strings.TrimSpace(r.Body)
	if r.Body == "" {
		r.Body = NoContent
	}
	return r
}

// Weak reports whether the record may be replaced by a better one during a merge.
func (r Record) Weak() bool {
	return IsPlaceholder(r) || strings.TrimSpace(r.Body) == NoContent
}

// Summary returns a one-line digest used in the rolling continuity log.
func (r Record) Summary(maxRunes int) string {
	content, _, _ := SplitBody(r.Body)
	if content == "" {
		content = r.Body
	}
	content = strings.Join(strings.Fields(content), " ")
	return fmt.Sprintf("%d. %s | %s", r.Index, r.Title, truncateRunes(content, maxRunes))
}

// Body field labels. The Chinese labels are accepted on input only.
var (
	contentLabel = regexp.MustCompile(`\*\*\s*(?:Content|内容)\s*\*\*\s*[:：]`)
	hookLabel    = regexp.MustCompile(`\*\*\s*(?:Hook|【悬疑点】|悬疑点)\s*\*\*\s*[:：]`)
	payoffLabel  = regexp.MustCompile(`\*\*\s*(?:Payoff|【爽点】|爽点)\s*\*\*\s*[:：]`)
)

// FormatBody renders the mandated three-field body.
func FormatBody(content, hook, payoff string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		content = NoContent
	}
	hook = strings.TrimSpace(hook)
	if hook == "" {
		hook = NonePayoff
	}
	payoff = strings.TrimSpace(payoff)
	if payoff == "" {
		payoff = NonePayoff
	}
	return fmt.Sprintf("**Content**: %s\n**Hook**: %s\n**Payoff**: %s", content, hook, payoff)
}

// SplitBody extracts the three fields from a formatted body. Fields that are not
// labelled come back empty; an unlabelled body is returned whole as content.
func SplitBody(body string) (content, hook, payoff string) {
	type mark struct {
		field      *string
		start, end int
	}
	var marks []mark
	for _, m := range []struct {
		re    *regexp.Regexp
		field *string
	}{{contentLabel, &content}, {hookLabel, &hook}, {payoffLabel, &payoff}} {
		if loc := m.re.FindStringIndex(body); loc != nil {
			marks = append(marks, mark{field: m.field, start: loc[0], end: loc[1]})
		}
	}
	if len(marks) == 0 {
		return strings.TrimSpace(body), "", ""
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].start < marks[j].start })
	for i, m := range marks {
		stop := len(body)
		if i+1 < len(marks) {
			stop = marks[i+1].start
		}
		*m.field = strings.TrimSpace(body[m.end:stop])
	}
	return content, hook, payoff
}

// Sorted returns the records of an index ordered by Index.
func Sorted(index map[int]Record) []Record {
	out := make([]Record, 0, len(index))
	for _, r := range index {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// RenderRecord renders one record in canonical text form.
func RenderRecord(r Record) string {
	r = r.Normalized()
	title := r.Title
	if title == "" {
		title = fmt.Sprintf("Chapter %d", r.Index)
	}
	return fmt.Sprintf("### Chapter %d: %s\n%s\n", r.Index, title, r.Body)
}

// RenderRecords renders records sorted by index, separated by blank lines.
func RenderRecords(records []Record) string {
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	var b strings.Builder
	for i, r := range sorted {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderRecord(r))
	}
	return b.String()
}

var titlePrefix = regexp.MustCompile(`^\s*(?:(?i:chapter)\s*\d+|第\s*\d+\s*章)\s*[:：.\-]?\s*`)

// cleanTitle drops a leading "Chapter N" / "第N章" prefix models like to repeat.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, "*#")
	title = titlePrefix.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// TailRunes returns the last n characters of s.
func TailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
