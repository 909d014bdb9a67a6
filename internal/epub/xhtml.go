package epub

import (
	"regexp"
	"strings"
)

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*`)
)

// generatePageXHTML converts a page's markdown to XHTML.
func (b *Builder) generatePageXHTML(p Page) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" lang="`)
	sb.WriteString(escapeXML(b.book.Language))
	sb.WriteString(`">
<head>
  <title>`)
	sb.WriteString(escapeXML(formatTitle(p)))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body class="`)
	sb.WriteString(p.Matter.class())
	sb.WriteString("\">\n<h1>")
	sb.WriteString(escapeXML(formatTitle(p)))
	sb.WriteString("</h1>\n")
	sb.WriteString(markdownToXHTML(p.Markdown))
	sb.WriteString("</body>\n</html>\n")

	return sb.String()
}

// markdownToXHTML converts the small markdown subset outlines use: headings,
// list items and paragraphs with bold/italic. Every non-empty line is its own
// paragraph since outline fields are line-oriented.
func markdownToXHTML(md string) string {
	var (
		out    strings.Builder
		inList bool
	)
	closeList := func() {
		if inList {
			out.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			closeList()
		case strings.HasPrefix(trimmed, "### "):
			closeList()
			out.WriteString("<h3>" + escapeXML(strings.TrimPrefix(trimmed, "### ")) + "</h3>\n")
		case strings.HasPrefix(trimmed, "## "):
			closeList()
			out.WriteString("<h2>" + escapeXML(strings.TrimPrefix(trimmed, "## ")) + "</h2>\n")
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			if !inList {
				out.WriteString("<ul>\n")
				inList = true
			}
			out.WriteString("<li>" + inline(trimmed[2:]) + "</li>\n")
		case trimmed == "---" || trimmed == "***":
			closeList()
			out.WriteString("<hr/>\n")
		default:
			closeList()
			out.WriteString("<p>" + inline(trimmed) + "</p>\n")
		}
	}
	closeList()
	return out.String()
}

// inline escapes text and applies bold and italic markers.
func inline(text string) string {
	text = escapeXML(text)
	text = boldRe.ReplaceAllStringFunc(text, func(match string) string {
		return `<strong class="field">` + strings.Trim(match, "*_") + "</strong>"
	})
	text = italicRe.ReplaceAllStringFunc(text, func(match string) string {
		return "<em>" + strings.Trim(match, "*") + "</em>"
	})
	return text
}
