package outline

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// headerRe matches a record header line. Group 1 is the heading prefix,
	// groups 2/3 the index (English / Chinese form), group 4 the remainder.
	headerRe = regexp.MustCompile(`(?i)^\s*(#{1,6}\s*)?(?:\*\*\s*)?(?:chapter\s*(\d+)|第\s*(\d+)\s*章)(.*)$`)

	// headingRe matches any markdown heading; a heading that is not a record
	// header ends the current record block.
	headingRe = regexp.MustCompile(`^\s*#{1,6}\s+\S`)

	// volumeRe matches volume lines, which also end a record block.
	volumeRe = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:\*\*\s*)?(?:volume\s*\d+|第\s*[0-9一二三四五六七八九十百]+\s*卷)`)

	leadingSep = regexp.MustCompile(`^\s*(?:\*\*)?\s*[:：.\-]`)

	// proseLabelRe matches section labels whose body is planning prose. Numbered
	// lines inside such a section are never records.
	proseLabelRe = regexp.MustCompile(`(?i)\bblueprint\b|蓝图|大纲规划`)
)

// block is one record together with its byte span in the source text.
// end is the offset just past the last non-blank line of the block.
type block struct {
	rec        Record
	start, end int
}

// header parses a record header line. ok is false when the line is not a header.
func header(line string) (index int, title, inline string, ok bool) {
	index, title, inline, _, ok = parseHeader(line)
	return index, title, inline, ok
}

// parseHeader is header plus whether the line is a markdown heading
// ("### Chapter 3") rather than a loose line ("Chapter 3: ..." or "**Chapter 3**").
func parseHeader(line string) (index int, title, inline string, heading, ok bool) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return 0, "", "", false, false
	}
	num := m[2]
	if num == "" {
		num = m[3]
	}
	index, err := strconv.Atoi(num)
	if err != nil || index < 1 {
		return 0, "", "", false, false
	}
	heading = strings.TrimSpace(m[1]) != ""
	rest := m[4]

	if leadingSep.MatchString(rest) {
		// "Chapter 3: Title" or "第3章：标题" puts the whole remainder in the title.
		return index, cleanTitle(rest[len(leadingSep.FindString(rest)):]), "", heading, true
	}
	if heading {
		return index, cleanTitle(rest), "", true, true
	}
	// Plain lines must carry a colon, otherwise "Chapter 3 was long" would match.
	if i := strings.IndexAny(rest, ":："); i >= 0 {
		sepLen := len(":")
		if strings.HasPrefix(rest[i:], "：") {
			sepLen = len("：")
		}
		return index, cleanTitle(rest[:i]), strings.TrimSpace(rest[i+sepLen:]), false, true
	}
	return 0, "", "", false, false
}

// scan walks text line by line and returns every record block in source order.
// When the text holds any heading-form record header, loose header lines are
// read as body text. Headers inside planning-prose sections are ignored.
func scan(text string) []block {
	var (
		blocks  []block
		cur     *block
		body    []string
		lastEnd int
		prose   bool
	)
	strict := hasHeadingRecords(text)
	flush := func() {
		if cur == nil {
			return
		}
		cur.rec.Body = strings.TrimSpace(strings.Join(body, "\n"))
		cur.end = lastEnd
		cur.rec = cur.rec.Normalized()
		blocks = append(blocks, *cur)
		cur, body = nil, nil
	}

	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		if raw == "" {
			continue
		}
		line := strings.TrimRight(raw, "\r\n")
		lineStart := offset
		offset += len(raw)

		if label, ok := sectionHeading(line); ok {
			prose = proseLabelRe.MatchString(label)
		}
		if prose {
			flush()
			continue
		}

		if idx, title, inline, heading, ok := parseHeader(line); ok && (heading || !strict) {
			flush()
			end := lineStart + len(strings.TrimRight(line, " \t\r"))
			cur = &block{rec: Record{Index: idx, Title: title}, start: lineStart}
			lastEnd = end
			if inline != "" {
				body = append(body, inline)
			}
			continue
		}
		if cur == nil {
			continue
		}
		if headingRe.MatchString(line) || volumeRe.MatchString(line) {
			flush()
			continue
		}
		body = append(body, line)
		if strings.TrimSpace(line) != "" {
			lastEnd = lineStart + len(strings.TrimRight(line, " \t\r"))
		}
	}
	flush()
	return blocks
}

// hasHeadingRecords reports whether a heading-form record header appears
// outside planning-prose sections.
func hasHeadingRecords(text string) bool {
	prose := false
	for _, line := range strings.Split(text, "\n") {
		if label, ok := sectionHeading(line); ok {
			prose = proseLabelRe.MatchString(label)
			continue
		}
		if prose {
			continue
		}
		if _, _, _, heading, ok := parseHeader(line); ok && heading {
			return true
		}
	}
	return false
}

// ParseRecords extracts the numbered records found in text. A later duplicate of
// an index only replaces the earlier record when the earlier one is weak.
func ParseRecords(text string) map[int]Record {
	out := make(map[int]Record)
	for _, b := range scan(text) {
		Merge(out, b.rec)
	}
	return out
}

// HasRecords reports whether text contains at least one numbered record header.
func HasRecords(text string) bool {
	return len(scan(text)) > 0
}

// Merge stores r in index unless that would replace a real record with a weak one.
// It returns true when index changed.
func Merge(index map[int]Record, r Record) bool {
	r = r.Normalized()
	cur, ok := index[r.Index]
	if ok && (!cur.Weak() || r.Weak()) {
		return false
	}
	index[r.Index] = r
	return true
}
