package providers

import "strings"

// ExtractText returns the plain text payload of resp, trying the direct text
// field, then the concatenated parts, then the first candidate that has any
// text. Whitespace-only text counts as nothing. It never fails; "" means the
// backend produced no usable output.
func ExtractText(resp *Response) string {
	if resp == nil {
		return ""
	}
	if text := strings.TrimSpace(resp.Text); text != "" {
		return text
	}
	if text := joinParts(resp.Parts); text != "" {
		return text
	}
	for _, c := range resp.Candidates {
		if text := strings.TrimSpace(c.Text); text != "" {
			return text
		}
		if text := joinParts(c.Parts); text != "" {
			return text
		}
	}
	return ""
}

// joinParts concatenates non-thought parts.
func joinParts(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
