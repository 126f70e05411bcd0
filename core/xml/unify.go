package xml

import (
	"github.com/antchfx/xmlquery"
)

// Unify normalizes namespaces in the subtree rooted at n: MathML elements
// take the m prefix, elements without a namespace move into XHTML, and
// every namespace declaration attribute is dropped. Declarations are
// written back once, on the top element, by Serialize.
func Unify(n *xmlquery.Node) {
	Walk(n, func(e *xmlquery.Node) bool {
		if e.Type != xmlquery.ElementNode {
			return true
		}
		switch e.NamespaceURI {
		case MathMLNamespace:
			e.Prefix = MathMLPrefix
		case "", XHTMLNamespace:
			e.NamespaceURI = XHTMLNamespace
			e.Prefix = ""
		}
		attrs := e.Attr[:0]
		for _, a := range e.Attr {
			if isNamespaceDecl(a) {
				continue
			}
			attrs = append(attrs, a)
		}
		e.Attr = attrs
		return true
	})
}

// UnifyString parses markup, unifies its namespaces and serializes it.
// MathML declared on the root or on a descendant yields the same output.
func UnifyString(markup string) (string, error) {
	doc, err := ParseString(markup)
	if err != nil {
		return "", err
	}
	root := doc.Root()
	Unify(root)
	return Serialize(root), nil
}
