package xml

import (
	"encoding/xml"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/therealmarv/cnx-epub/core/errors"
)

var htmlNamespaces = map[string]string{
	"":      XHTMLNamespace,
	"math":  MathMLNamespace,
	"svg":   "http://www.w3.org/2000/svg",
	"xlink": "http://www.w3.org/1999/xlink",
	"xml":   XMLNamespace,
}

// ParseHTMLFragment parses lenient HTML, as returned by external content
// services, into detached well-formed nodes. MathML elements come back in
// the MathML namespace with the m prefix.
func ParseHTMLFragment(s string) ([]*xmlquery.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return nil, &errors.ParseError{Format: "HTML", Message: err.Error(), Err: err}
	}
	out := make([]*xmlquery.Node, 0, len(parsed))
	for _, n := range parsed {
		if c := convertHTML(n); c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// AppendHTML parses s with ParseHTMLFragment and appends the result to parent.
func AppendHTML(parent *xmlquery.Node, s string) error {
	nodes, err := ParseHTMLFragment(s)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		AppendChild(parent, n)
	}
	return nil
}

func convertHTML(n *html.Node) *xmlquery.Node {
	switch n.Type {
	case html.TextNode:
		return NewText(n.Data)
	case html.CommentNode:
		return NewComment(n.Data)
	case html.ElementNode:
	default:
		return nil
	}

	e := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         n.Data,
		NamespaceURI: htmlNamespaces[n.Namespace],
	}
	if n.Namespace == "math" {
		e.Prefix = MathMLPrefix
	}
	for _, a := range n.Attr {
		if a.Key == "xmlns" || strings.HasPrefix(a.Key, "xmlns:") {
			continue
		}
		attr := xmlquery.Attr{Name: xml.Name{Local: a.Key}, Value: a.Val}
		if a.Namespace != "" {
			attr.Name.Space = a.Namespace
			attr.NamespaceURI = htmlNamespaces[a.Namespace]
			if a.Namespace == "xml" {
				attr.Name.Space = XMLNamespace
			}
		}
		e.Attr = append(e.Attr, attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := convertHTML(c); child != nil {
			AppendChild(e, child)
		}
	}
	return e
}
