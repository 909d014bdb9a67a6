package epub

import (
	"fmt"
	"strings"
)

// generateNavigation creates the nav.xhtml navigation document. Chapters are
// nested under a "Chapters" entry between the front and back matter.
func (b *Builder) generateNavigation() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>Table of Contents</title>
  <link rel="stylesheet" type="text/css" href="styles/style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Table of Contents</h1>
    <ol>
`)

	var front, body, back []Page
	for _, p := range b.pages {
		switch p.Matter {
		case FrontMatter:
			front = append(front, p)
		case BackMatter:
			back = append(back, p)
		default:
			body = append(body, p)
		}
	}

	for _, p := range front {
		sb.WriteString(navEntry("      ", p))
	}
	if len(body) > 0 {
		fmt.Fprintf(&sb, "      <li>\n        <a href=\"pages/%s.xhtml\">Chapters</a>\n        <ol>\n", body[0].ID)
		for _, p := range body {
			sb.WriteString(navEntry("          ", p))
		}
		sb.WriteString("        </ol>\n      </li>\n")
	}
	for _, p := range back {
		sb.WriteString(navEntry("      ", p))
	}

	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)
	return sb.String()
}

func navEntry(indent string, p Page) string {
	return fmt.Sprintf("%s<li><a href=\"pages/%s.xhtml\">%s</a></li>\n", indent, p.ID, escapeXML(formatTitle(p)))
}

// formatTitle prefixes chapter pages with their number.
func formatTitle(p Page) string {
	if p.Number > 0 {
		return fmt.Sprintf("Chapter %d: %s", p.Number, p.Title)
	}
	return p.Title
}

// generateNCX creates the toc.ncx for ePub 2 compatibility.
func (b *Builder) generateNCX() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="`)
	sb.WriteString(escapeXML(b.uid))
	sb.WriteString(`"/>
    <meta name="dtb:depth" content="1"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
  <docTitle>
    <text>`)
	sb.WriteString(escapeXML(b.book.Title))
	sb.WriteString(`</text>
  </docTitle>
  <navMap>
`)
	for i, p := range b.pages {
		fmt.Fprintf(&sb, "    <navPoint id=\"navpoint-%d\" playOrder=\"%d\">\n", i+1, i+1)
		fmt.Fprintf(&sb, "      <navLabel><text>%s</text></navLabel>\n", escapeXML(formatTitle(p)))
		fmt.Fprintf(&sb, "      <content src=\"pages/%s.xhtml\"/>\n", p.ID)
		sb.WriteString("    </navPoint>\n")
	}
	sb.WriteString(`  </navMap>
</ncx>
`)
	return sb.String()
}
