package outline

import (
	"fmt"
	"sort"
	"strings"
)

const (
	placeholderMarker = "Placeholder:"
	aftermathPrefix   = "Aftermath of "
	preludePrefix     = "Prelude to "

	placeholderContent = placeholderMarker + " the story bridges the surrounding chapters, consolidating what came before and moving the main conflict forward."
	placeholderHook    = "A lingering question from these events is left open for the next chapter."
	placeholderPayoff  = "A small gain that steadies the protagonist before the next push."
)

// Synthesize builds a deterministic placeholder record for index. The title is
// derived from the nearest existing neighbours; prev takes precedence over next.
func Synthesize(index int, prev, next *Record) Record {
	title := fmt.Sprintf("Chapter %d", index)
	switch {
	case prev != nil && baseTitle(prev.Title) != "":
		title = aftermathPrefix + baseTitle(prev.Title)
	case next != nil && baseTitle(next.Title) != "":
		title = preludePrefix + baseTitle(next.Title)
	}
	return Record{
		Index:     index,
		Title:     title,
		Body:      FormatBody(placeholderContent, placeholderHook, placeholderPayoff),
		Synthetic: true,
	}
}

// SynthesizeRange fills every index in missing with a placeholder whose neighbours
// are looked up in index. index is not modified.
func SynthesizeRange(index map[int]Record, missing []int) []Record {
	if len(missing) == 0 {
		return nil
	}
	keys := make([]int, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]Record, 0, len(missing))
	for _, idx := range missing {
		var prev, next *Record
		if i := sort.SearchInts(keys, idx); i > 0 {
			r := index[keys[i-1]]
			prev = &r
		}
		if i := sort.SearchInts(keys, idx+1); i < len(keys) {
			r := index[keys[i]]
			next = &r
		}
		out = append(out, Synthesize(idx, prev, next))
	}
	return out
}

// IsPlaceholder reports whether r was synthesized, either by flag or, after a
// round trip through text, by its marker content.
func IsPlaceholder(r Record) bool {
	if r.Synthetic {
		return true
	}
	content, _, _ := SplitBody(r.Body)
	return strings.HasPrefix(strings.TrimSpace(content), placeholderMarker)
}

// baseTitle strips placeholder prefixes so chained gaps don't stack them.
func baseTitle(title string) string {
	title = cleanTitle(title)
	for {
		switch {
		case strings.HasPrefix(title, aftermathPrefix):
			title = strings.TrimPrefix(title, aftermathPrefix)
		case strings.HasPrefix(title, preludePrefix):
			title = strings.TrimPrefix(title, preludePrefix)
		default:
			return strings.TrimSpace(title)
		}
	}
}
