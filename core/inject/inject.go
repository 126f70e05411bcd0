// Package inject runs ordered (pattern, transform) rules over a merged
// document.
//
// Each rule queries the current document, so later rules see the edits of
// earlier ones. Transforms for the matches of one rule are prepared
// concurrently and may fetch external content; the edits they return are
// applied one at a time in document order. The first error aborts the run.
package inject

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"golang.org/x/sync/errgroup"

	"github.com/therealmarv/cnx-epub/core/xml"
	"github.com/therealmarv/cnx-epub/internal/logging"
)

// PageIDPrefix prefixes the id of every page container.
const PageIDPrefix = "page_"

// DefaultConcurrency bounds concurrent transforms when Pipeline.Concurrency is unset.
const DefaultConcurrency = 4

// Match is one node selected by a rule.
type Match struct {
	// Node is the matched node.
	Node *xmlquery.Node

	// PageIDs are the ids of every rendered page, in document order.
	PageIDs []string

	// Document is the document being transformed. Transforms must only read it.
	Document *xml.Document
}

// Mutation applies a prepared edit. Mutations run serially.
type Mutation func() error

// Transform prepares the edit for one match. It may block on I/O but must
// not modify the document; a nil Mutation means nothing to do.
type Transform func(ctx context.Context, m Match) (Mutation, error)

// Rule pairs an XPath pattern with a Transform.
type Rule struct {
	Name      string
	Pattern   string
	Transform Transform
}

// Edit adapts an in-place edit of the matched node into a Transform.
func Edit(fn func(n *xmlquery.Node, pageIDs []string) error) Transform {
	return func(_ context.Context, m Match) (Mutation, error) {
		return func() error { return fn(m.Node, m.PageIDs) }, nil
	}
}

// Pipeline applies rules in order.
type Pipeline struct {
	Rules []Rule

	// Concurrency bounds concurrent transforms per rule.
	Concurrency int
}

// New creates a Pipeline with the default concurrency.
func New(rules ...Rule) *Pipeline {
	return &Pipeline{Rules: rules, Concurrency: DefaultConcurrency}
}

// Run applies every rule to doc. On error the document may be partially
// edited and must be discarded.
func (p *Pipeline) Run(ctx context.Context, doc *xml.Document) error {
	for _, rule := range p.Rules {
		if err := p.runRule(ctx, doc, rule); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runRule(ctx context.Context, doc *xml.Document, rule Rule) error {
	start := time.Now()
	expr, err := xml.Compile(rule.Pattern)
	if err != nil {
		return fmt.Errorf("rule %s: %w", rule.Name, err)
	}
	nodes := xmlquery.QuerySelectorAll(doc.Node(), expr)
	pageIDs := PageIDs(doc)

	mutations := make([]Mutation, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	limit := p.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)
	for i, n := range nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mutation, err := rule.Transform(gctx, Match{Node: n, PageIDs: pageIDs, Document: doc})
			if err != nil {
				return err
			}
			mutations[i] = mutation
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, mutation := range mutations {
		if mutation == nil {
			continue
		}
		if err := mutation(); err != nil {
			return err
		}
	}
	logging.PipelineStage(ctx, rule.Name, len(nodes), time.Since(start))
	return nil
}

// PageIDs returns the ids of the rendered pages in doc, without the page_ prefix.
func PageIDs(doc *xml.Document) []string {
	var ids []string
	for _, e := range xml.Elements(doc.Root()) {
		if isPage(e) {
			ids = append(ids, strings.TrimPrefix(xml.AttrValue(e, "id"), PageIDPrefix))
		}
	}
	return ids
}

// PageOf returns the id of the page containing n, without the page_ prefix.
func PageOf(n *xmlquery.Node) string {
	page := xml.Ancestor(n, isPage)
	if page == nil {
		return ""
	}
	return strings.TrimPrefix(xml.AttrValue(page, "id"), PageIDPrefix)
}

// FindPage returns the container element of the page with the given id.
func FindPage(doc *xml.Document, id string) *xmlquery.Node {
	for _, e := range xml.Elements(doc.Root()) {
		if isPage(e) && xml.AttrValue(e, "id") == PageIDPrefix+id {
			return e
		}
	}
	return nil
}

// HasAnchor reports whether the page with the given id holds an element with id anchor.
func HasAnchor(doc *xml.Document, page, anchor string) bool {
	container := FindPage(doc, page)
	if container == nil {
		return false
	}
	for _, e := range xml.Elements(container) {
		if xml.AttrValue(e, "id") == anchor {
			return true
		}
	}
	return false
}

func isPage(n *xmlquery.Node) bool {
	switch xml.AttrValue(n, "data-type") {
	case "page", "composite-page":
		return strings.HasPrefix(xml.AttrValue(n, "id"), PageIDPrefix)
	}
	return false
}
