// Package merge flattens a Content Tree into one XHTML document.
//
// Pages are visited in pre-order. Each page body has its ids namespaced
// with the page token and its namespaces unified before it is appended,
// so every id in the merged document is unique and every same-page link
// still resolves.
package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/therealmarv/cnx-epub/core/anchors"
	"github.com/therealmarv/cnx-epub/core/encoding"
	"github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/tree"
	"github.com/therealmarv/cnx-epub/core/xml"
)

// PageIDPrefix prefixes the id of every page container in the merged document.
const PageIDPrefix = "page_"

// DraftVersion is the version suffix used when a node names no version.
const DraftVersion = "draft"

// Page is one rendered page of the merged document.
type Page struct {
	Node tree.Page

	// Slug is <id>@<version>.
	Slug string

	// Token namespaces the ids of this occurrence of the page.
	Token string

	// Element is the page container in the merged DOM.
	Element *xmlquery.Node
}

// ElementID returns the id of the page container.
func (p *Page) ElementID() string {
	return PageIDPrefix + p.Token
}

// NavEntry is one entry of the navigation outline.
type NavEntry struct {
	// Title is HTML markup.
	Title string

	// Href is empty for grouping entries.
	Href string

	Children []*NavEntry
}

// MergedDocument is the flattened book.
type MergedDocument struct {
	Title      string
	Language   string
	Pages      []*Page
	Navigation []*NavEntry
	Resources  []*tree.Resource
	DOM        *xml.Document
}

// PageIDs returns the page tokens in document order.
func (m *MergedDocument) PageIDs() []string {
	ids := make([]string, len(m.Pages))
	for i, p := range m.Pages {
		ids[i] = p.Token
	}
	return ids
}

// Serialize returns the merged document as XHTML.
func (m *MergedDocument) Serialize() string {
	return "<!DOCTYPE html>\n" + m.DOM.Serialize()
}

// Slug returns <id>@<version> for n, using the version in the metadata or
// DraftVersion. Identifiers that already carry a version are returned as is.
func Slug(n tree.Node) string {
	id := n.ID()
	if strings.Contains(id, "@") {
		return id
	}
	version := n.Metadata().Version()
	if version == "" {
		version = DraftVersion
	}
	return id + "@" + version
}

// Filename returns the file form of the page slug.
func Filename(n tree.Node) string {
	return Slug(n) + ".xhtml"
}

type merger struct {
	doc   *MergedDocument
	body  *xmlquery.Node
	seen  map[string]int    // occurrences per token
	byID  map[string]string // page id without version -> first token
	nodes []tree.Node       // renderable nodes and binders, for resources
}

// Merge flattens root into a MergedDocument.
func Merge(root tree.Node) (*MergedDocument, error) {
	if root == nil {
		return nil, errors.NewValidation("root", "content tree is empty")
	}
	meta := root.Metadata()
	m := &merger{
		doc: &MergedDocument{
			Title:    meta.Title(),
			Language: meta.Language(),
		},
		seen: map[string]int{},
		byID: map[string]string{},
	}

	html := m.skeleton(meta)
	nav := xml.NewElement("nav", "id", "toc")
	xml.AppendChild(m.body, nav)

	var entries []*NavEntry
	switch n := root.(type) {
	case tree.Container:
		m.nodes = append(m.nodes, n)
		for i, child := range n.Nodes() {
			entry, err := m.visit(child, m.body, titleFor(n, i, child))
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	default:
		entry, err := m.visit(n, m.body, encoding.EscapeXMLText(meta.Title()))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	m.doc.Navigation = entries
	if err := renderNavigation(nav, entries); err != nil {
		return nil, err
	}

	resources, err := collectResources(m.nodes)
	if err != nil {
		return nil, err
	}
	m.doc.Resources = resources
	m.rewriteReferences(resources)

	m.doc.DOM = xml.NewDocument(html)
	return m.doc, nil
}

// skeleton builds html/head/body with the book-level metadata.
func (m *merger) skeleton(meta tree.Metadata) *xmlquery.Node {
	html := xml.NewElement("html")
	if lang := meta.Language(); lang != "" {
		xml.SetAttr(html, "lang", lang)
	}
	head := xml.NewElement("head")
	xml.AppendChild(html, head)
	title := xml.NewElement("title")
	xml.SetText(title, meta.Title())
	xml.AppendChild(head, title)
	if lang := meta.Language(); lang != "" {
		xml.AppendChild(head, xml.NewElement("meta", "itemprop", "inLanguage", "content", lang))
	}
	if created := meta.String(tree.KeyCreated); created != "" {
		xml.AppendChild(head, xml.NewElement("meta", "itemprop", "dateCreated", "content", created))
	}
	if revised := meta.String(tree.KeyRevised); revised != "" {
		xml.AppendChild(head, xml.NewElement("meta", "itemprop", "dateModified", "content", revised))
	}

	m.body = xml.NewElement("body", "itemscope", "itemscope", "itemtype", "http://schema.org/Book")
	xml.AppendChild(html, m.body)
	xml.AppendChild(m.body, metadataBlock(meta))
	return html
}

func metadataBlock(meta tree.Metadata) *xmlquery.Node {
	block := xml.NewElement("div", "data-type", "metadata", "style", "display: none;")
	h1 := xml.NewElement("h1", "data-type", "document-title", "itemprop", "name")
	xml.SetText(h1, meta.Title())
	xml.AppendChild(block, h1)

	for _, field := range []struct{ key, dataType string }{
		{tree.KeyRevised, "revised"},
		{tree.KeyCanonicalBookUUID, "canonical-book-uuid"},
		{tree.KeyArchiveURI, "cnx-archive-uri"},
	} {
		if v := meta.String(field.key); v != "" {
			xml.AppendChild(block, xml.NewElement("span", "data-type", field.dataType, "data-value", v))
		}
	}
	if url := meta.String(tree.KeyLicenseURL); url != "" {
		license := xml.NewElement("div", "data-type", "license")
		a := xml.NewElement("a", "href", url, "itemprop", "dc:license,lrmi:useRightsURL", "data-type", "license")
		text := meta.String(tree.KeyLicenseText)
		if text == "" {
			text = url
		}
		xml.SetText(a, text)
		xml.AppendChild(license, a)
		xml.AppendChild(block, license)
	}
	return block
}

// visit renders n into parent and returns its navigation entry.
func (m *merger) visit(n tree.Node, parent *xmlquery.Node, title string) (*NavEntry, error) {
	switch node := n.(type) {
	case tree.Page:
		page, err := m.renderPage(node)
		if err != nil {
			return nil, err
		}
		xml.AppendChild(parent, page.Element)
		return &NavEntry{Title: title, Href: "#" + page.ElementID()}, nil

	case *tree.DocumentPointer:
		href := node.URL()
		if href == "" {
			href = Filename(node)
		}
		return &NavEntry{Title: title, Href: href}, nil

	case *tree.Binder:
		m.nodes = append(m.nodes, node)
		chapter := xml.NewElement("div", "data-type", chapterType(node))
		heading := xml.NewElement("h1", "data-type", "document-title")
		if err := xml.AppendHTML(heading, title); err != nil {
			return nil, err
		}
		xml.AppendChild(chapter, heading)
		xml.AppendChild(parent, chapter)
		return m.visitChildren(node, chapter, title)

	case *tree.TranslucentBinder:
		return m.visitChildren(node, parent, title)
	}
	return nil, fmt.Errorf("unsupported content tree node %T", n)
}

func (m *merger) visitChildren(c tree.Container, parent *xmlquery.Node, title string) (*NavEntry, error) {
	entry := &NavEntry{Title: title}
	for i, child := range c.Nodes() {
		childEntry, err := m.visit(child, parent, titleFor(c, i, child))
		if err != nil {
			return nil, err
		}
		entry.Children = append(entry.Children, childEntry)
	}
	return entry, nil
}

// renderPage parses, namespaces and unifies one page body.
func (m *merger) renderPage(p tree.Page) (*Page, error) {
	m.nodes = append(m.nodes, p)

	doc, err := xml.ParseString(p.Body())
	if err != nil {
		var perr *errors.ParseError
		if errors.As(err, &perr) {
			perr.Path = p.ID()
		}
		return nil, err
	}
	body := doc.Root()
	if body.Data == "html" {
		for _, child := range xml.ChildElements(body) {
			if child.Data == "body" {
				body = child
				break
			}
		}
	}

	token := m.token(p.ID())
	anchors.NamespaceNode(body, token)
	xml.Unify(body)

	dataType := "page"
	if p.Kind() == tree.KindCompositeDocument {
		dataType = "composite-page"
	}
	element := xml.NewElement("div", "data-type", dataType, "id", PageIDPrefix+token)
	for _, a := range body.Attr {
		if a.Name.Space == "" && (a.Name.Local == "id" || a.Name.Local == "data-type") {
			continue
		}
		element.Attr = append(element.Attr, a)
	}
	xml.MoveChildren(element, body)

	page := &Page{Node: p, Slug: Slug(p), Token: token, Element: element}
	m.doc.Pages = append(m.doc.Pages, page)
	return page, nil
}

// token returns a token unique within the merge for id.
func (m *merger) token(id string) string {
	base := anchors.Token(id)
	m.seen[base]++
	token := base
	if n := m.seen[base]; n > 1 {
		token = base + "-" + strconv.Itoa(n)
	}
	key := pageKey(id)
	if _, ok := m.byID[key]; !ok {
		m.byID[key] = token
	}
	return token
}

func pageKey(id string) string {
	if i := strings.IndexByte(id, '@'); i >= 0 {
		return id[:i]
	}
	return id
}

func chapterType(b *tree.Binder) string {
	for _, child := range b.Children {
		if _, ok := child.(tree.Container); ok {
			return "unit"
		}
	}
	return "chapter"
}

// titleFor returns the navigation title markup for the child at position i.
func titleFor(c tree.Container, i int, child tree.Node) string {
	if override, ok := c.TitleFor(i); ok {
		return override
	}
	title := child.Metadata().Title()
	if title == "" {
		title = child.ID()
	}
	return encoding.EscapeXMLText(title)
}
