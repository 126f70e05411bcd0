// Package links recognizes hrefs that point at another page of the book.
//
// Two forms are understood:
//
//	/contents/<id>[@<version>][#<fragment>]
//	[./]<id>@<version>.xhtml[#<fragment>]
package links

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Ref is a parsed cross-page reference.
type Ref struct {
	// ID is the page identifier without version.
	ID string

	// Version is the explicit version, if any.
	Version string

	// Fragment is the in-page target without the leading '#'.
	Fragment string
}

// hrefGrammar is the participle grammar for page references.
//
//nolint:govet // participle grammar tags are not standard struct tags
type hrefGrammar struct {
	Prefix   string `@(Contents | Dot)?`
	Name     string `@Name`
	Version  string `( At @Name )?`
	Ext      string `@Ext?`
	Fragment string `@Fragment?`
}

// hrefLexer defines the tokens of a page reference.
var hrefLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Contents", Pattern: `/contents/`},
	{Name: "Dot", Pattern: `\./`},
	{Name: "Ext", Pattern: `\.x?html`},
	{Name: "Fragment", Pattern: `#\S*`},
	{Name: "At", Pattern: `@`},
	{Name: "Name", Pattern: `[A-Za-z0-9_\-]+(?:\.[0-9]+)*`},
})

// hrefParser is the participle parser for page references.
var hrefParser = participle.MustBuild[hrefGrammar](
	participle.Lexer(hrefLexer),
)

// Parse reports whether href references a page by identifier and returns
// the parsed reference. Plain fragments, absolute URLs and resource paths
// are not page references.
func Parse(href string) (*Ref, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	parsed, err := hrefParser.ParseString("", href)
	if err != nil {
		return nil, false
	}
	if parsed.Prefix == "" && parsed.Ext == "" {
		return nil, false
	}
	if parsed.Ext != "" && parsed.Prefix != "/contents/" && parsed.Version == "" {
		// Relative file references always name a version.
		return nil, false
	}
	return &Ref{
		ID:       parsed.Name,
		Version:  parsed.Version,
		Fragment: strings.TrimPrefix(parsed.Fragment, "#"),
	}, true
}
