package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/quire/internal/outline"
)

// ErrMalformed means the text did not yield a usable record list. Callers
// answer it with a repair round trip.
var ErrMalformed = errors.New("malformed structured output")

var (
	indexKeys  = []string{"index", "chapter", "num", "number", "id", "chapter_number", "chapter_index"}
	titleKeys  = []string{"title", "name", "chapter_title"}
	bodyKeys   = []string{"body", "summary", "content", "description", "outline"}
	hookKeys   = []string{"hook", "suspense", "cliffhanger"}
	payoffKeys = []string{"payoff", "highlight", "climax"}

	digitsRe = regexp.MustCompile(`\d+`)
)

// Records decodes text into records. Items outside [lo,hi] are dropped when
// lo <= hi; pass lo > hi to keep every index. A valid empty list returns an
// empty slice and no error.
func Records(text string, lo, hi int) ([]outline.Record, error) {
	v, ok := Value(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON value found", ErrMalformed)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of records, got %T", ErrMalformed, v)
	}

	ranged := lo <= hi
	out := make([]outline.Record, 0, len(list))
	var (
		firstIssue error
		outside    int
	)
	for i, item := range list {
		recs, err := decodeItem(item)
		if err != nil {
			if firstIssue == nil {
				firstIssue = fmt.Errorf("item %d: %w", i, err)
			}
			continue
		}
		for _, r := range recs {
			if ranged && (r.Index < lo || r.Index > hi) {
				outside++
				continue
			}
			out = append(out, r)
		}
	}
	if len(out) == 0 && outside == 0 && firstIssue != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, firstIssue)
	}
	return out, nil
}

// decodeItem turns one list element into records. Strings are parsed as
// outline text so "Chapter 3: Title" style entries still count.
func decodeItem(item any) ([]outline.Record, error) {
	switch x := item.(type) {
	case map[string]any:
		r, err := decodeObject(x)
		if err != nil {
			return nil, err
		}
		return []outline.Record{r}, nil
	case string:
		recs := outline.Sorted(outline.ParseRecords(x))
		if len(recs) == 0 {
			return nil, fmt.Errorf("string item has no numbered header")
		}
		return recs, nil
	default:
		return nil, fmt.Errorf("unexpected item type %T", item)
	}
}

func decodeObject(m map[string]any) (outline.Record, error) {
	index, ok := lookupIndex(m)
	if !ok {
		return outline.Record{}, fmt.Errorf("missing record index")
	}
	content := lookupString(m, bodyKeys...)
	hook := lookupString(m, hookKeys...)
	payoff := lookupString(m, payoffKeys...)

	body := content
	if hook != "" || payoff != "" {
		body = outline.FormatBody(content, hook, payoff)
	}
	r := outline.Record{
		Index: index,
		Title: lookupString(m, titleKeys...),
		Body:  body,
	}.Normalized()

	if err := validateRecord(r); err != nil {
		return outline.Record{}, err
	}
	return r, nil
}

// lookupIndex finds the first index alias carrying a positive integer,
// accepting numeric strings such as "12" or "Chapter 12".
func lookupIndex(m map[string]any) (int, bool) {
	for _, k := range indexKeys {
		v, ok := lookupKey(m, k)
		if !ok {
			continue
		}
		switch x := v.(type) {
		case float64:
			if x == math.Trunc(x) && x >= 1 && x <= math.MaxInt32 {
				return int(x), true
			}
		case json.Number:
			if n, err := x.Int64(); err == nil && n >= 1 {
				return int(n), true
			}
		case string:
			s := strings.TrimSpace(x)
			if n, err := strconv.Atoi(s); err == nil && n >= 1 {
				return n, true
			}
			if d := digitsRe.FindString(s); d != "" {
				if n, err := strconv.Atoi(d); err == nil && n >= 1 {
					return n, true
				}
			}
		}
	}
	return 0, false
}

// lookupString returns the first non-empty string value among keys.
// Numbers are formatted; lists of strings are joined.
func lookupString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := lookupKey(m, k)
		if !ok {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		case []any:
			parts := make([]string, 0, len(x))
			for _, p := range x {
				if ps, ok := p.(string); ok {
					parts = append(parts, strings.TrimSpace(ps))
				}
			}
			s = strings.Join(parts, " ")
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// lookupKey matches keys case-insensitively.
func lookupKey(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return v, true
		}
	}
	return nil, false
}
