// Package normalize recovers JSON values from noisy model output and decodes
// them into outline records.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")

// wrapperKeys are checked in order when an object wraps the list we want.
var wrapperKeys = []string{"items", "list", "data", "chapters", "records", "outline", "results"}

// Value extracts a JSON value from text. Objects wrapping a list under a common
// key are unwrapped and a lone record object is promoted to a one-element list.
// ok is false when no JSON could be recovered at all; an empty list is a
// successful result.
func Value(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if fenced, ok := stripFence(text); ok {
		text = fenced
	}

	v, ok := parse(text)
	if !ok {
		if candidate := longestBalanced(text); candidate != "" {
			text = candidate
			v, ok = parse(candidate)
		}
	}
	if !ok {
		v, ok = parse(repair(text))
	}
	if !ok {
		return nil, false
	}
	return unwrap(v), true
}

func parse(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	return v, true
}

// stripFence returns the contents of the first fenced code block in text.
func stripFence(text string) (string, bool) {
	m := fenceRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	inner := strings.TrimSpace(m[1])
	return inner, inner != ""
}

// longestBalanced returns the longer of the balanced substrings starting at the
// first '{' and at the first '['.
func longestBalanced(text string) string {
	var best string
	for _, open := range []byte{'{', '['} {
		start := strings.IndexByte(text, open)
		if start < 0 {
			continue
		}
		if c := balancedFrom(text, start); len(c) > len(best) {
			best = c
		}
	}
	return best
}

// balancedFrom scans bracket depth from start, skipping double-quoted strings.
// It returns "" when the brackets never balance.
func balancedFrom(s string, start int) string {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
			if depth < 0 {
				return ""
			}
		}
	}
	return ""
}

// repair rewrites single-quoted strings as double-quoted ones and removes
// trailing commas before a closing bracket. Double-quoted strings are copied
// untouched.
func repair(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			end := skipString(s, i, '"')
			b.WriteString(s[i:end])
			i = end - 1
		case '\'':
			end := skipString(s, i, '\'')
			innerEnd := end
			if end > i+1 && s[end-1] == '\'' {
				innerEnd = end - 1
			}
			b.WriteByte('"')
			b.WriteString(requote(s[i+1 : innerEnd]))
			b.WriteByte('"')
			i = end - 1
		case ',':
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// skipString returns the offset just past the string opened by quote at start,
// or len(s) when it is unterminated.
func skipString(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(s)
}

// requote turns the body of a single-quoted string into a valid double-quoted body.
func requote(inner string) string {
	inner = strings.ReplaceAll(inner, `\'`, `'`)
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			b.WriteByte(inner[i])
			b.WriteByte(inner[i+1])
			i++
			continue
		}
		if inner[i] == '"' {
			b.WriteString(`\"`)
			continue
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}

func unwrap(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if looksLikeRecord(m) {
		return []any{m}
	}
	for _, k := range wrapperKeys {
		if inner, ok := m[k]; ok {
			if list := asList(inner); list != nil {
				return list
			}
		}
	}
	for k, inner := range m {
		if strings.Contains(strings.ToLower(k), "chapter") {
			if list := asList(inner); list != nil {
				return list
			}
		}
	}
	if len(m) == 1 {
		for _, inner := range m {
			if list := asList(inner); list != nil {
				return list
			}
		}
	}
	return m
}

// asList returns inner as a list, looking one wrapper level deeper for objects.
func asList(inner any) []any {
	switch x := inner.(type) {
	case []any:
		return x
	case map[string]any:
		if list, ok := unwrap(x).([]any); ok {
			return list
		}
	}
	return nil
}

func looksLikeRecord(m map[string]any) bool {
	if _, ok := lookupIndex(m); !ok {
		return false
	}
	return lookupString(m, titleKeys...) != "" || lookupString(m, bodyKeys...) != "" ||
		lookupString(m, hookKeys...) != "" || lookupString(m, payoffKeys...) != ""
}
