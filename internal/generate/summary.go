package generate

import "strings"

// summaryLog is the rolling one-line-per-chapter continuity log, trimmed to
// its most recent limit characters at line boundaries.
type summaryLog struct {
	limit int
	lines []string
	size  int
}

func newSummaryLog(limit int) *summaryLog {
	return &summaryLog{limit: limit}
}

func (l *summaryLog) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	l.lines = append(l.lines, line)
	l.size += len([]rune(line)) + 1
	for l.size > l.limit && len(l.lines) > 1 {
		l.size -= len([]rune(l.lines[0])) + 1
		l.lines = l.lines[1:]
	}
}

func (l *summaryLog) String() string {
	return strings.Join(l.lines, "\n")
}
