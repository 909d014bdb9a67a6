package epub

import (
	"fmt"
	"strings"
)

// generatePackage creates the content.opf package document.
func (b *Builder) generatePackage() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	fmt.Fprintf(&sb, "    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", escapeXML(b.uid))
	fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", escapeXML(b.book.Title))
	if b.book.Author != "" {
		fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", escapeXML(b.book.Author))
	}
	fmt.Fprintf(&sb, "    <dc:language>%s</dc:language>\n", escapeXML(b.book.Language))
	// Modified timestamp (required for ePub 3)
	fmt.Fprintf(&sb, "    <meta property=\"dcterms:modified\">%s</meta>\n", b.book.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
	sb.WriteString("  </metadata>\n\n")

	sb.WriteString("  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	sb.WriteString("    <item id=\"style\" href=\"styles/style.css\" media-type=\"text/css\"/>\n")
	for _, p := range b.pages {
		fmt.Fprintf(&sb, "    <item id=\"%s\" href=\"pages/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n", p.ID, p.ID)
	}
	sb.WriteString("  </manifest>\n\n")

	// Spine (reading order)
	sb.WriteString("  <spine toc=\"ncx\">\n")
	for _, p := range b.pages {
		fmt.Fprintf(&sb, "    <itemref idref=\"%s\"/>\n", p.ID)
	}
	sb.WriteString("  </spine>\n")
	sb.WriteString("</package>\n")

	return sb.String()
}

// escapeXML escapes special XML characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
