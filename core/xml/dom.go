package xml

import (
	"encoding/xml"
	"strings"

	"github.com/antchfx/xmlquery"
)

// NewElement creates a detached XHTML element. attrs are name/value pairs.
func NewElement(name string, attrs ...string) *xmlquery.Node {
	n := &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         name,
		NamespaceURI: XHTMLNamespace,
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		SetAttr(n, attrs[i], attrs[i+1])
	}
	return n
}

// NewText creates a detached text node.
func NewText(s string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.TextNode, Data: s}
}

// NewComment creates a detached comment node.
func NewComment(s string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.CommentNode, Data: s}
}

// IsElement reports whether n is an element, optionally with one of the given local names.
func IsElement(n *xmlquery.Node, names ...string) bool {
	if n == nil || n.Type != xmlquery.ElementNode {
		return false
	}
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if n.Data == name {
			return true
		}
	}
	return false
}

// Attr returns the value of the unprefixed attribute name.
func Attr(n *xmlquery.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrValue returns the value of the unprefixed attribute name, or "".
func AttrValue(n *xmlquery.Node, name string) string {
	v, _ := Attr(n, name)
	return v
}

// SetAttr sets an unprefixed attribute, keeping its position when it already exists.
func SetAttr(n *xmlquery.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{Name: xml.Name{Local: name}, Value: value})
}

// AppendChild detaches child and appends it as the last child of parent.
func AppendChild(parent, child *xmlquery.Node) {
	Remove(child)
	child.Parent = parent
	if parent.LastChild == nil {
		parent.FirstChild = child
		parent.LastChild = child
		return
	}
	child.PrevSibling = parent.LastChild
	parent.LastChild.NextSibling = child
	parent.LastChild = child
}

// InsertBefore detaches n and inserts it before ref.
func InsertBefore(ref, n *xmlquery.Node) {
	Remove(n)
	parent := ref.Parent
	n.Parent = parent
	n.NextSibling = ref
	n.PrevSibling = ref.PrevSibling
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if parent != nil {
		parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// Remove detaches n from its parent and siblings. Detached nodes are left untouched.
func Remove(n *xmlquery.Node) {
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	} else if n.Parent != nil && n.Parent.FirstChild == n {
		n.Parent.FirstChild = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	} else if n.Parent != nil && n.Parent.LastChild == n {
		n.Parent.LastChild = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// Replace puts nodes in place of old and detaches old.
func Replace(old *xmlquery.Node, nodes ...*xmlquery.Node) {
	for _, n := range nodes {
		InsertBefore(old, n)
	}
	Remove(old)
}

// Children returns the child nodes of n as a slice, so callers may move them.
func Children(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// ChildElements returns the element children of n.
func ChildElements(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// MoveChildren appends every child of src to dst in order.
func MoveChildren(dst, src *xmlquery.Node) {
	for _, c := range Children(src) {
		AppendChild(dst, c)
	}
}

// Walk visits n and its descendants in document order. Returning false
// skips the subtree below the current node.
func Walk(n *xmlquery.Node, fn func(*xmlquery.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// Elements returns n and every descendant element in document order.
func Elements(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	Walk(n, func(e *xmlquery.Node) bool {
		if e.Type == xmlquery.ElementNode {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Ancestor returns the closest ancestor of n for which match returns true.
func Ancestor(n *xmlquery.Node, match func(*xmlquery.Node) bool) *xmlquery.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == xmlquery.ElementNode && match(p) {
			return p
		}
	}
	return nil
}

// Clone returns a deep copy of n without parent or siblings.
func Clone(n *xmlquery.Node) *xmlquery.Node {
	c := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		AppendChild(c, Clone(child))
	}
	return c
}

// Text returns the concatenated text content of n.
func Text(n *xmlquery.Node) string {
	var b strings.Builder
	Walk(n, func(c *xmlquery.Node) bool {
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// SetText replaces the children of n with a single text node.
func SetText(n *xmlquery.Node, s string) {
	for _, c := range Children(n) {
		Remove(c)
	}
	if s != "" {
		AppendChild(n, NewText(s))
	}
}
