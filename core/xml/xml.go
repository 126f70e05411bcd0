// Package xml provides the XHTML document model used by the assembler:
// parsing, XPath, tree editing, namespace unification and serialization.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     which doesn't fetch external entities by default.
//   - The xmlquery library is used for parsing, which uses Go's encoding/xml
//     internally and inherits its security properties.
package xml

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/therealmarv/cnx-epub/core/errors"
)

// Namespaces understood by the unifier.
const (
	XHTMLNamespace  = "http://www.w3.org/1999/xhtml"
	MathMLNamespace = "http://www.w3.org/1998/Math/MathML"
	XMLNamespace    = "http://www.w3.org/XML/1998/namespace"

	// MathMLPrefix is the single prefix MathML islands are bound to.
	MathMLPrefix = "m"
)

// Document represents a parsed XHTML document.
type Document struct {
	root *xmlquery.Node
}

// Parse parses well-formed XML data and returns a Document.
// The result is not unified; call Unify on Root() when mixing sources.
func Parse(data []byte) (*Document, error) {
	return ParseString(string(data))
}

// ParseString parses a well-formed XML string and returns a Document.
func ParseString(s string) (*Document, error) {
	root, err := xmlquery.Parse(strings.NewReader(s))
	if err != nil {
		return nil, &errors.ParseError{Format: "XHTML", Message: err.Error(), Err: err}
	}
	if firstElement(root) == nil {
		return nil, errors.NewParse("XHTML", "", "document has no root element")
	}
	return &Document{root: root}, nil
}

// NewDocument wraps a detached element in a new document node.
func NewDocument(element *xmlquery.Node) *Document {
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	AppendChild(doc, element)
	return &Document{root: doc}
}

// Node returns the underlying document node.
func (d *Document) Node() *xmlquery.Node {
	return d.root
}

// Root returns the root element of the document.
func (d *Document) Root() *xmlquery.Node {
	if d.root == nil {
		return nil
	}
	return firstElement(d.root)
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*xmlquery.Node, error) {
	return QueryAll(d.root, expr)
}

// XPathFirst executes an XPath query and returns the first matching node.
func (d *Document) XPathFirst(expr string) (*xmlquery.Node, error) {
	compiled, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return xmlquery.QuerySelector(d.root, compiled), nil
}

// Serialize converts the document back to XHTML with unified namespaces.
func (d *Document) Serialize() string {
	if d.root == nil {
		return ""
	}
	return Serialize(d.root)
}

// Compile compiles an XPath expression.
func Compile(expr string) (*xpath.Expr, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return compiled, nil
}

// QueryAll evaluates expr relative to top and returns the matching nodes in document order.
func QueryAll(top *xmlquery.Node, expr string) ([]*xmlquery.Node, error) {
	compiled, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return xmlquery.QuerySelectorAll(top, compiled), nil
}

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}
