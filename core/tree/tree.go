// Package tree defines the Content Tree: the closed set of node variants a
// book is assembled from.
package tree

import (
	"github.com/google/uuid"
)

// Kind identifies a node variant.
type Kind string

// Node kinds.
const (
	KindDocument          Kind = "document"
	KindCompositeDocument Kind = "composite-document"
	KindDocumentPointer   Kind = "document-pointer"
	KindBinder            Kind = "binder"
	KindTranslucentBinder Kind = "translucent-binder"
)

// Node is implemented by every Content Tree variant.
type Node interface {
	// ID is the stable identifier of the node. Translucent binders have none.
	ID() string
	// Metadata returns the node's mutable metadata mapping.
	Metadata() Metadata
	// Kind reports the variant.
	Kind() Kind

	node()
}

// Page is a node that renders as a page of the merged document.
type Page interface {
	Node
	// Body returns the serialized body markup.
	Body() string
	// PageResources returns the resources owned by the page.
	PageResources() []*Resource
}

// Container is a node that groups children in order.
type Container interface {
	Node
	Nodes() []Node
	// TitleFor returns the title override at position i, if one was supplied.
	TitleFor(i int) (string, bool)
}

// Resource is a binary payload referenced from page markup.
// Resources are deduplicated by pointer identity, never by content.
type Resource struct {
	// ID is the identifier used in /resources/<id> references.
	ID string `json:"id"`

	// MediaType is the MIME type (e.g., "image/jpeg").
	MediaType string `json:"media_type"`

	// Filename is the output filename; ID is used when empty.
	Filename string `json:"filename,omitempty"`

	// Data holds the payload bytes.
	Data []byte `json:"-"`
}

// OutputName returns the filename the resource is written under.
func (r *Resource) OutputName() string {
	if r.Filename != "" {
		return r.Filename
	}
	return r.ID
}

// Document owns serialized body markup and its resources.
type Document struct {
	id        string
	Content   string
	Resources []*Resource
	metadata  Metadata
}

// NewDocument creates a Document. A nil metadata map is replaced with an empty one.
func NewDocument(id, content string, metadata Metadata, resources ...*Resource) *Document {
	return &Document{id: id, Content: content, Resources: resources, metadata: ensure(metadata)}
}

func (d *Document) ID() string                 { return d.id }
func (d *Document) Metadata() Metadata         { return d.metadata }
func (d *Document) Kind() Kind                 { return KindDocument }
func (d *Document) Body() string               { return d.Content }
func (d *Document) PageResources() []*Resource { return d.Resources }
func (d *Document) node()                      {}

// CompositeDocument is a Document synthesized during assembly, such as an
// end-of-chapter summary page.
type CompositeDocument struct {
	Document
}

// NewCompositeDocument creates a CompositeDocument. An empty id is replaced
// with a random UUID.
func NewCompositeDocument(id, content string, metadata Metadata, resources ...*Resource) *CompositeDocument {
	if id == "" {
		id = uuid.NewString()
	}
	return &CompositeDocument{Document: *NewDocument(id, content, metadata, resources...)}
}

func (c *CompositeDocument) Kind() Kind { return KindCompositeDocument }

// DocumentPointer references a document outside the tree. It has no body.
type DocumentPointer struct {
	id       string
	metadata Metadata
}

// NewDocumentPointer creates a DocumentPointer.
func NewDocumentPointer(id string, metadata Metadata) *DocumentPointer {
	return &DocumentPointer{id: id, metadata: ensure(metadata)}
}

func (p *DocumentPointer) ID() string         { return p.id }
func (p *DocumentPointer) Metadata() Metadata { return p.metadata }
func (p *DocumentPointer) Kind() Kind         { return KindDocumentPointer }
func (p *DocumentPointer) node()              {}

// URL returns the external location of the pointed-to document.
func (p *DocumentPointer) URL() string {
	return p.metadata.String("url")
}

// Binder is an ordered container with its own identity, such as a book or a chapter.
type Binder struct {
	id       string
	Children []Node

	// TitleOverrides holds per-position titles; markup is allowed.
	TitleOverrides []string

	Resources []*Resource
	metadata  Metadata
}

// NewBinder creates a Binder.
func NewBinder(id string, metadata Metadata, children ...Node) *Binder {
	return &Binder{id: id, Children: children, metadata: ensure(metadata)}
}

func (b *Binder) ID() string         { return b.id }
func (b *Binder) Metadata() Metadata { return b.metadata }
func (b *Binder) Kind() Kind         { return KindBinder }
func (b *Binder) Nodes() []Node      { return b.Children }
func (b *Binder) node()              {}

// Append adds a child at the end.
func (b *Binder) Append(n Node) {
	b.Children = append(b.Children, n)
}

func (b *Binder) TitleFor(i int) (string, bool) {
	return titleAt(b.TitleOverrides, i)
}

// TranslucentBinder groups children in the navigation without a page of its own.
type TranslucentBinder struct {
	Children       []Node
	TitleOverrides []string
	metadata       Metadata
}

// NewTranslucentBinder creates a TranslucentBinder.
func NewTranslucentBinder(metadata Metadata, children ...Node) *TranslucentBinder {
	return &TranslucentBinder{Children: children, metadata: ensure(metadata)}
}

func (t *TranslucentBinder) ID() string         { return "" }
func (t *TranslucentBinder) Metadata() Metadata { return t.metadata }
func (t *TranslucentBinder) Kind() Kind         { return KindTranslucentBinder }
func (t *TranslucentBinder) Nodes() []Node      { return t.Children }
func (t *TranslucentBinder) node()              {}

// Append adds a child at the end.
func (t *TranslucentBinder) Append(n Node) {
	t.Children = append(t.Children, n)
}

func (t *TranslucentBinder) TitleFor(i int) (string, bool) {
	return titleAt(t.TitleOverrides, i)
}

func titleAt(overrides []string, i int) (string, bool) {
	if i < 0 || i >= len(overrides) || overrides[i] == "" {
		return "", false
	}
	return overrides[i], true
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	if c, ok := n.(Container); ok {
		for _, child := range c.Nodes() {
			Walk(child, fn)
		}
	}
}

// Pages returns every renderable page under n in pre-order.
func Pages(n Node) []Page {
	var pages []Page
	Walk(n, func(node Node) bool {
		if p, ok := node.(Page); ok {
			pages = append(pages, p)
		}
		return true
	})
	return pages
}
