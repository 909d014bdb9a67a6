package generate

import "strings"

// leadIns are conversational openers models put in front of the answer.
var leadIns = []string{
	"sure", "certainly", "of course", "here is", "here's", "here are",
	"as an expert", "as a senior", "i will", "i'll", "below is",
	"收到", "感谢", "作为资深", "我将", "我会", "以下是", "将为您", "为了确保", "基于您", "这里为您提供",
}

// Sanitize drops boilerplate lead-in lines and blank lines from free text.
func Sanitize(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		lt := strings.TrimSpace(line)
		if lt == "" || isLeadIn(lt) {
			continue
		}
		out = append(out, lt)
	}
	return strings.Join(out, "\n")
}

func isLeadIn(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range leadIns {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
