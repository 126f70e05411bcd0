package xml

import (
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/therealmarv/cnx-epub/core/encoding"
)

// voidElements are the XHTML elements written in self-closing form.
// Every other empty element is written with an explicit end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Serialize writes n as XHTML. The top-most element written carries the
// namespace declarations: xmlns for XHTML, xmlns:m when MathML occurs,
// then any other prefix in use.
func Serialize(n *xmlquery.Node) string {
	w := &writer{}
	w.node(n, true)
	return w.b.String()
}

// InnerXML serializes the children of n without namespace declarations.
func InnerXML(n *xmlquery.Node) string {
	w := &writer{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c, false)
	}
	return w.b.String()
}

type writer struct {
	b strings.Builder
}

func (w *writer) node(n *xmlquery.Node, top bool) {
	switch n.Type {
	case xmlquery.DocumentNode:
		// The prolog belongs to the output container, not the markup.
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.DeclarationNode {
				w.node(c, top)
			}
		}
	case xmlquery.TextNode:
		w.b.WriteString(encoding.EscapeXMLText(n.Data))
	case xmlquery.CharDataNode:
		w.b.WriteString("<![CDATA[")
		w.b.WriteString(n.Data)
		w.b.WriteString("]]>")
	case xmlquery.CommentNode:
		w.b.WriteString("<!--")
		w.b.WriteString(n.Data)
		w.b.WriteString("-->")
	case xmlquery.ElementNode:
		w.element(n, top)
	}
}

func (w *writer) element(n *xmlquery.Node, top bool) {
	name := qualifiedName(n)
	w.b.WriteByte('<')
	w.b.WriteString(name)

	if top {
		w.declarations(n)
	} else if foreignDefault(n) && (n.Parent == nil || n.Parent.NamespaceURI != n.NamespaceURI) {
		w.attr("xmlns", n.NamespaceURI)
	}
	for _, a := range n.Attr {
		if isNamespaceDecl(a) {
			continue
		}
		w.attr(attrName(a), a.Value)
	}

	if n.FirstChild == nil && isXHTML(n) && voidElements[n.Data] {
		w.b.WriteString("/>")
		return
	}
	w.b.WriteByte('>')
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c, false)
	}
	w.b.WriteString("</")
	w.b.WriteString(name)
	w.b.WriteByte('>')
}

func (w *writer) attr(name, value string) {
	w.b.WriteByte(' ')
	w.b.WriteString(name)
	w.b.WriteString(`="`)
	w.b.WriteString(encoding.EscapeXMLAttr(value))
	w.b.WriteByte('"')
}

// declarations writes the namespace declarations needed by the subtree rooted at n.
func (w *writer) declarations(n *xmlquery.Node) {
	if foreignDefault(n) {
		w.attr("xmlns", n.NamespaceURI)
	} else {
		w.attr("xmlns", XHTMLNamespace)
	}

	hasMath := false
	prefixes := map[string]string{}
	Walk(n, func(e *xmlquery.Node) bool {
		if e.Type != xmlquery.ElementNode {
			return true
		}
		switch {
		case e.NamespaceURI == MathMLNamespace:
			hasMath = true
		case e.Prefix != "" && !isXHTML(e):
			prefixes[e.Prefix] = e.NamespaceURI
		}
		for _, a := range e.Attr {
			if a.Name.Space == "" || isNamespaceDecl(a) || a.Name.Space == XMLNamespace || a.Name.Space == "xml" {
				continue
			}
			if a.NamespaceURI != "" {
				prefixes[a.Name.Space] = a.NamespaceURI
			}
		}
		return true
	})
	if hasMath {
		w.attr("xmlns:"+MathMLPrefix, MathMLNamespace)
	}
	delete(prefixes, MathMLPrefix)
	names := make([]string, 0, len(prefixes))
	for p := range prefixes {
		names = append(names, p)
	}
	sort.Strings(names)
	for _, p := range names {
		w.attr("xmlns:"+p, prefixes[p])
	}
}

func qualifiedName(n *xmlquery.Node) string {
	switch {
	case isXHTML(n):
		return n.Data
	case n.NamespaceURI == MathMLNamespace:
		return MathMLPrefix + ":" + n.Data
	case n.Prefix != "":
		return n.Prefix + ":" + n.Data
	default:
		return n.Data
	}
}

func attrName(a xmlquery.Attr) string {
	switch a.Name.Space {
	case "":
		return a.Name.Local
	case XMLNamespace:
		return "xml:" + a.Name.Local
	default:
		return a.Name.Space + ":" + a.Name.Local
	}
}

func isXHTML(n *xmlquery.Node) bool {
	return n.NamespaceURI == "" || n.NamespaceURI == XHTMLNamespace
}

// foreignDefault reports an element in a namespace other than XHTML and
// MathML that was declared as a default namespace, such as inline SVG.
func foreignDefault(n *xmlquery.Node) bool {
	return !isXHTML(n) && n.NamespaceURI != MathMLNamespace && n.Prefix == ""
}

func isNamespaceDecl(a xmlquery.Attr) bool {
	return (a.Name.Space == "" && a.Name.Local == "xmlns") || a.Name.Space == "xmlns"
}
