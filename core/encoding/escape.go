// Package encoding provides text escaping for the XHTML serializer and EPUB packaging.
package encoding

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// EscapeXML escapes special characters for XML content, quotes included.
// Uses the standard library's xml.EscapeText for proper escaping.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

var textReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeXMLText escapes only the basic XML entities for text content.
// Unlike EscapeXML it leaves quotes and newlines readable.
func EscapeXMLText(s string) string {
	return textReplacer.Replace(s)
}

var attrReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"\n", "&#10;",
	"\t", "&#9;",
)

// EscapeXMLAttr escapes text for use in double-quoted XML attributes.
// Newlines and tabs are written as character references so that attribute
// value normalization does not alter them on re-parse.
func EscapeXMLAttr(s string) string {
	return attrReplacer.Replace(s)
}

// NormalizeSpace collapses runs of whitespace to a single space and trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
